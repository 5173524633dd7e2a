//go:build !unix

package uthread

import "errors"

func newMmapAllocator(guard bool) (Allocator, error) {
	return nil, errors.New("uthread: mmap allocator is not supported on this platform")
}
