package uthread

import (
	"encoding/binary"
	"fmt"
)

// stackCanary is written at the low end of every stack buffer and checked
// each time the owning thread is switched away from.
const stackCanary uint64 = 0x670c1333b83bf575

const canarySize = 8

// Stack is a raw buffer owned by one Context for its whole lifetime.
// GoroutineSwitcher allocates it but runs the thread on the goroutine's own
// stack.
type Stack struct {
	buf []byte
	mem []byte // whole mapping for mmap stacks, guard page included
}

// Bytes returns the usable buffer. The first bytes hold the canary.
func (s Stack) Bytes() []byte { return s.buf }

// Size returns the usable size in bytes.
func (s Stack) Size() int { return len(s.buf) }

func (s Stack) setCanary() {
	binary.LittleEndian.PutUint64(s.buf[:canarySize], stackCanary)
}

func (s Stack) intact() bool {
	if len(s.buf) < canarySize {
		return true
	}
	return binary.LittleEndian.Uint64(s.buf[:canarySize]) == stackCanary
}

// Allocator hands out and takes back stack buffers.
type Allocator interface {
	Alloc(size int) (Stack, error)
	Free(s Stack) error
}

// NewAllocator builds the allocator described by cfg, wrapped in a byte
// budget when cfg.MaxStackBytes is set.
func NewAllocator(cfg *Config) (Allocator, error) {
	var a Allocator
	switch cfg.Allocator {
	case "", AllocatorHeap:
		a = heapAllocator{}
	case AllocatorMmap:
		m, err := newMmapAllocator(cfg.GuardPage)
		if err != nil {
			return nil, err
		}
		a = m
	default:
		return nil, fmt.Errorf("uthread: unknown allocator %q", cfg.Allocator)
	}
	if cfg.MaxStackBytes > 0 {
		a = &budgetAllocator{Allocator: a, limit: cfg.MaxStackBytes}
	}
	return a, nil
}

type heapAllocator struct{}

func (heapAllocator) Alloc(size int) (Stack, error) {
	if size < canarySize {
		return Stack{}, fmt.Errorf("uthread: stack size %d too small", size)
	}
	return Stack{buf: make([]byte, size)}, nil
}

func (heapAllocator) Free(Stack) error { return nil }

// budgetAllocator fails with ErrOutOfMemory once the bytes handed out and not
// yet freed would exceed limit.
type budgetAllocator struct {
	Allocator
	limit int64
	inuse int64
}

func (b *budgetAllocator) Alloc(size int) (Stack, error) {
	if b.inuse+int64(size) > b.limit {
		return Stack{}, fmt.Errorf("%w: stack budget of %d bytes exhausted (%d in use)", ErrOutOfMemory, b.limit, b.inuse)
	}
	s, err := b.Allocator.Alloc(size)
	if err != nil {
		return Stack{}, err
	}
	b.inuse += int64(s.Size())
	return s, nil
}

func (b *budgetAllocator) Free(s Stack) error {
	b.inuse -= int64(s.Size())
	return b.Allocator.Free(s)
}
