package uthread

type monitorKey struct {
	lock LockID
	cond CondID
}

// monitorTable maps a (lock, cond) pair to the threads waiting on it.
type monitorTable map[monitorKey]*threadQueue

// Wait releases lock, sleeps on (lock, cond) until Signal or Broadcast wakes
// it, then re-acquires lock before returning. The caller must hold lock.
func (s *Scheduler) Wait(lock LockID, cond CondID) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.unlock("wait", lock); err != nil {
		return err
	}

	cur := s.running
	cur.status = _TmonitorBlocked
	cur.waitLock, cur.waitCond = lock, cond
	k := monitorKey{lock, cond}
	q := s.mons[k]
	if q == nil {
		q = &threadQueue{}
		s.mons[k] = q
	}
	q.push(cur)
	s.scheduleLog("wait", cur)
	s.park("wait")

	return s.lock(lock)
}

// Signal moves the longest waiting thread on (lock, cond), if any, to the
// ready queue. It will contend for lock once it runs.
func (s *Scheduler) Signal(lock LockID, cond CondID) error {
	if err := s.check(); err != nil {
		return err
	}
	s.wake(monitorKey{lock, cond}, 1)
	return nil
}

// Broadcast moves every thread waiting on (lock, cond) to the ready queue,
// in the order they started waiting.
func (s *Scheduler) Broadcast(lock LockID, cond CondID) error {
	if err := s.check(); err != nil {
		return err
	}
	s.wake(monitorKey{lock, cond}, -1)
	return nil
}

// wake readies up to n waiters of k, all of them if n < 0.
func (s *Scheduler) wake(k monitorKey, n int) int {
	q := s.mons[k]
	if q == nil {
		return 0
	}
	woken := 0
	for n < 0 || woken < n {
		gp := q.pop()
		if gp == nil {
			break
		}
		gp.waitCond = 0
		s.ready(gp)
		s.scheduleLog("signal", gp)
		woken++
	}
	if q.empty() {
		delete(s.mons, k)
	}
	return woken
}
