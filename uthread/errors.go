package uthread

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInitialized = errors.New("uthread: already initialized")
	ErrNotInitialized     = errors.New("uthread: not initialized")
	ErrOutOfMemory        = errors.New("uthread: out of memory")
	ErrDeadlockSelf       = errors.New("lock already held by the running thread")
	ErrNotHeld            = errors.New("lock not held by the running thread")

	// ErrDeadlock is fatal: a thread had to block and no other thread was
	// ready.
	ErrDeadlock = errors.New("uthread: deadlock")
)

// LockError reports a failed Lock, Unlock or Wait.
type LockError struct {
	Op   string
	Lock LockID
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("uthread: %s %d: %v", e.Op, e.Lock, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }
