package uthread

// thread status
const (
	_Tready uint32 = iota
	_Trunning
	_TlockBlocked
	_TmonitorBlocked
	_Tdead
)

// LockID names a mutex. Locks exist implicitly: the first Lock of an id
// creates it.
type LockID uint32

// CondID names a condition variable within the scope of one lock.
type CondID uint32

// ThreadID identifies a logical thread. IDs start at 1 and are never reused
// within one Scheduler; 0 means "no thread".
type ThreadID uint64

// Func is the body of a logical thread.
type Func func(arg any)

// thread is one logical thread. At any instant it is owned by exactly one of
// the running slot, the ready queue, a lock's blocked queue or a monitor
// queue.
type thread struct {
	tid    ThreadID
	status uint32
	fn     Func
	arg    any
	ctx    *Context

	// what the thread is parked on, valid in _TlockBlocked/_TmonitorBlocked
	waitLock LockID
	waitCond CondID

	next   *thread // link for threadQueue
	queued bool
}

func statusString(status uint32) string {
	switch status {
	case _Tready:
		return "ready"
	case _Trunning:
		return "running"
	case _TlockBlocked:
		return "lock-blocked"
	case _TmonitorBlocked:
		return "monitor-blocked"
	case _Tdead:
		return "dead"
	}
	return "unknown"
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Spawned   uint64 // threads created, including the entry thread
	Switches  uint64 // context transfers performed by the scheduler
	Reclaimed uint64 // threads whose context and stack were freed
	Stranded  uint64 // threads still blocked when the ready queue drained
	Live      int    // threads not yet reclaimed
	Ready     int    // threads on the ready queue
}
