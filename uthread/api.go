package uthread

import (
	"errors"
	"fmt"
	"os"
)

// Process-wide API over one default Scheduler.

var (
	std         *Scheduler
	initialized bool
)

// Initialize builds the default Scheduler from DefaultConfig and the
// UTHREAD_* environment, runs entry(arg) on it and terminates the process
// once no thread is ready: exit status 0 when the ready queue drained (even
// with threads left blocked), 1 on deadlock. It returns only if
// initialization fails; any later call returns ErrAlreadyInitialized.
func Initialize(entry Func, arg any) error {
	if initialized {
		return ErrAlreadyInitialized
	}
	initialized = true

	cfg := DefaultConfig()
	if err := ApplyEnv(cfg); err != nil {
		return fmt.Errorf("uthread: %w", err)
	}
	s, err := New(cfg)
	if err != nil {
		return err
	}
	std = s

	err = s.Run(entry, arg)
	switch {
	case err == nil:
		s.log.Info("thread library exiting", "stranded", s.stats.Stranded)
		os.Exit(0)
	case errors.Is(err, ErrDeadlock):
		s.log.Error("thread library exiting", "err", err)
		os.Exit(1)
	}
	return err
}

func Spawn(body Func, arg any) (ThreadID, error) {
	if std == nil {
		return 0, ErrNotInitialized
	}
	return std.Spawn(body, arg)
}

func Yield() error {
	if std == nil {
		return ErrNotInitialized
	}
	return std.Yield()
}

func Lock(id LockID) error {
	if std == nil {
		return ErrNotInitialized
	}
	return std.Lock(id)
}

func Unlock(id LockID) error {
	if std == nil {
		return ErrNotInitialized
	}
	return std.Unlock(id)
}

func Wait(lock LockID, cond CondID) error {
	if std == nil {
		return ErrNotInitialized
	}
	return std.Wait(lock, cond)
}

func Signal(lock LockID, cond CondID) error {
	if std == nil {
		return ErrNotInitialized
	}
	return std.Signal(lock, cond)
}

func Broadcast(lock LockID, cond CondID) error {
	if std == nil {
		return ErrNotInitialized
	}
	return std.Broadcast(lock, cond)
}

// Self returns the id of the running thread of the default Scheduler.
func Self() ThreadID {
	if std == nil {
		return 0
	}
	return std.Self()
}

// GetTCount returns the number of threads on the default Scheduler's ready
// queue (for debugging).
func GetTCount() int {
	if std == nil {
		return 0
	}
	return std.runq.len()
}
