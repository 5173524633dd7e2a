package uthread

type lockEntry struct {
	holder  *thread
	blocked threadQueue
}

// lockTable maps a lock id to its holder and blocked queue. Entries with no
// holder and no waiters are dropped.
type lockTable map[LockID]*lockEntry

func (lt lockTable) get(id LockID) *lockEntry {
	l := lt[id]
	if l == nil {
		l = &lockEntry{}
		lt[id] = l
	}
	return l
}

// Lock acquires lock id for the running thread. An unheld lock is taken
// without a context switch. A held lock blocks the caller until an Unlock
// hands the lock to it; the caller then returns as the holder.
//
// Locking a lock the caller already holds fails with ErrDeadlockSelf.
func (s *Scheduler) Lock(id LockID) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.lock(id)
}

func (s *Scheduler) lock(id LockID) error {
	cur := s.running
	l := s.locks.get(id)

	if l.holder == cur {
		return &LockError{Op: "lock", Lock: id, Err: ErrDeadlockSelf}
	}
	if l.holder == nil {
		l.holder = cur
		return nil
	}

	cur.status = _TlockBlocked
	cur.waitLock = id
	l.blocked.push(cur)
	s.scheduleLog("block on lock", cur)
	s.park("lock")

	// Unlock handed the lock over before readying us.
	return nil
}

// Unlock releases lock id. If threads are blocked on it, the first one
// becomes the holder and is appended to the ready queue. Unlock never
// switches.
func (s *Scheduler) Unlock(id LockID) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.unlock("unlock", id)
}

func (s *Scheduler) unlock(op string, id LockID) error {
	cur := s.running
	l := s.locks[id]
	if l == nil || l.holder != cur {
		return &LockError{Op: op, Lock: id, Err: ErrNotHeld}
	}

	l.holder = nil
	next := l.blocked.pop()
	if next == nil {
		delete(s.locks, id)
		return nil
	}

	l.holder = next
	next.waitLock = 0
	s.ready(next)
	s.scheduleLog("handoff", next)
	return nil
}

// Holder returns the thread holding lock id, or 0.
func (s *Scheduler) Holder(id LockID) ThreadID {
	if l := s.locks[id]; l != nil && l.holder != nil {
		return l.holder.tid
	}
	return 0
}
