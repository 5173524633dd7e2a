//go:build unix

package uthread

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mmapAllocator maps each stack separately, optionally with an inaccessible
// guard page below it so an overflow faults instead of corrupting memory.
type mmapAllocator struct {
	guard    bool
	pageSize int
}

func newMmapAllocator(guard bool) (*mmapAllocator, error) {
	return &mmapAllocator{guard: guard, pageSize: unix.Getpagesize()}, nil
}

func (m *mmapAllocator) Alloc(size int) (Stack, error) {
	if size < canarySize {
		return Stack{}, fmt.Errorf("uthread: stack size %d too small", size)
	}
	n := (size + m.pageSize - 1) &^ (m.pageSize - 1)
	total := n
	if m.guard {
		total += m.pageSize
	}

	mem, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return Stack{}, fmt.Errorf("%w: mmap %d bytes: %v", ErrOutOfMemory, total, err)
	}

	off := 0
	if m.guard {
		if err := unix.Mprotect(mem[:m.pageSize], unix.PROT_NONE); err != nil {
			_ = unix.Munmap(mem)
			return Stack{}, fmt.Errorf("uthread: guard page: %w", err)
		}
		off = m.pageSize
	}
	return Stack{buf: mem[off : off+n], mem: mem}, nil
}

func (m *mmapAllocator) Free(s Stack) error {
	if s.mem == nil {
		return nil
	}
	if err := unix.Munmap(s.mem); err != nil {
		return fmt.Errorf("uthread: munmap stack: %w", err)
	}
	return nil
}
