package uthread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Scheduler multiplexes logical threads onto one flow of control. Threads
// switch only inside Yield, a contended Lock, Wait, or when their body
// returns.
//
// All methods except Run must be called from a logical thread of this
// Scheduler.
type Scheduler struct {
	cfg   *Config
	alloc Allocator
	sw    Switcher
	log   *slog.Logger

	inited bool
	done   bool
	err    error // fatal error that stopped the drive loop

	main    *Context // root context the drive loop runs on
	running *thread
	runq    threadQueue
	locks   lockTable
	mons    monitorTable
	allt    map[ThreadID]*thread
	tidgen  ThreadID

	stats Stats
}

// New builds a Scheduler from cfg (DefaultConfig if nil) using the
// goroutine-backed Switcher.
func New(cfg *Config) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("uthread: %w", err)
	}
	alloc, err := NewAllocator(cfg)
	if err != nil {
		return nil, err
	}
	return NewScheduler(cfg, alloc, GoroutineSwitcher{}, nil), nil
}

// NewScheduler assembles a Scheduler from explicit collaborators. A nil log
// logs to stderr at the level cfg.Debug selects.
func NewScheduler(cfg *Config, alloc Allocator, sw Switcher, log *slog.Logger) *Scheduler {
	if log == nil {
		log = defaultLogger(cfg)
	}
	return &Scheduler{
		cfg:   cfg,
		alloc: alloc,
		sw:    sw,
		log:   log,
		locks: make(lockTable),
		mons:  make(monitorTable),
		allt:  make(map[ThreadID]*thread),
	}
}

// ============ Drive loop ============

// Run creates a thread for entry(arg) and drives the scheduler until no
// thread is ready, then tears everything down. Threads still blocked on a
// lock or monitor at that point are discarded and counted in
// Stats.Stranded; Run still returns nil. It returns an error wrapping
// ErrDeadlock only when a thread had to block with nothing else ready.
func (s *Scheduler) Run(entry Func, arg any) error {
	if s.inited {
		return ErrAlreadyInitialized
	}
	s.inited = true

	s.main = &Context{}
	if err := s.sw.Capture(s.main); err != nil {
		s.done = true
		return fmt.Errorf("uthread: capture root context: %w", err)
	}

	gp, err := s.newThread(entry, arg)
	if err != nil {
		s.done = true
		return err
	}
	s.ready(gp)

	s.schedule()
	return s.teardown()
}

// ============ Thread operations ============

// Spawn creates a thread for body(arg) and appends it to the ready queue.
// The caller keeps running.
func (s *Scheduler) Spawn(body Func, arg any) (ThreadID, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	gp, err := s.newThread(body, arg)
	if err != nil {
		return 0, err
	}
	s.ready(gp)
	return gp.tid, nil
}

// Yield moves the running thread to the back of the ready queue and runs the
// front one. With nothing else ready it returns at once.
func (s *Scheduler) Yield() error {
	if err := s.check(); err != nil {
		return err
	}
	if s.runq.empty() {
		return nil
	}
	next := s.runq.pop()
	cur := s.running
	s.ready(cur)
	s.switchTo(cur, next)
	return nil
}

// Self returns the id of the running thread, or 0 outside one.
func (s *Scheduler) Self() ThreadID {
	if s.running == nil {
		return 0
	}
	return s.running.tid
}

func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Live = len(s.allt)
	st.Ready = s.runq.len()
	return st
}

func (s *Scheduler) check() error {
	if !s.inited || s.done || s.running == nil {
		return ErrNotInitialized
	}
	return nil
}

func (s *Scheduler) newThread(fn Func, arg any) (*thread, error) {
	if fn == nil {
		panic("uthread: nil thread body")
	}

	stack, err := s.alloc.Alloc(s.cfg.StackSize)
	if err != nil {
		if !errors.Is(err, ErrOutOfMemory) {
			err = fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		return nil, fmt.Errorf("allocate stack: %w", err)
	}
	stack.setCanary()

	gp := &thread{
		tid:    s.tidgen + 1,
		status: _Tready,
		fn:     fn,
		arg:    arg,
		ctx:    &Context{},
	}
	if err := s.sw.Configure(gp.ctx, stack, func() { s.trampoline(gp) }); err != nil {
		_ = s.alloc.Free(stack)
		return nil, fmt.Errorf("%w: configure context: %v", ErrOutOfMemory, err)
	}

	s.tidgen = gp.tid
	s.allt[gp.tid] = gp
	s.stats.Spawned++
	s.scheduleLog("spawn", gp)
	return gp, nil
}

// trampoline is the first and last frame of every logical thread. A thread
// that finishes always lands back in the drive loop.
func (s *Scheduler) trampoline(gp *thread) {
	gp.fn(gp.arg)

	s.checkStack(gp)
	gp.status = _Tdead
	s.scheduleLog("exit", gp)
	s.stats.Switches++
	s.sw.Switch(gp.ctx, s.main)
	panic("uthread: terminated thread resumed")
}

// schedule is the drive loop. Control comes back to it only when the
// running thread terminated or a fatal deadlock was raised.
func (s *Scheduler) schedule() {
	for s.err == nil {
		gp := s.runq.pop()
		if gp == nil {
			return
		}
		s.execute(gp)
		s.reclaim()
	}
}

func (s *Scheduler) execute(gp *thread) {
	gp.status = _Trunning
	s.running = gp
	s.stats.Switches++
	s.scheduleLog("execute", gp)
	s.sw.Switch(s.main, gp.ctx)
}

// reclaim frees the previous running thread if it terminated.
func (s *Scheduler) reclaim() {
	gp := s.running
	if gp == nil || gp.status != _Tdead {
		return
	}
	s.running = nil
	s.destroy(gp)
}

func (s *Scheduler) destroy(gp *thread) {
	s.sw.Release(gp.ctx)
	if err := s.alloc.Free(gp.ctx.stack); err != nil {
		s.log.Warn("free stack", "tid", gp.tid, "err", err)
	}
	delete(s.allt, gp.tid)
	gp.status = _Tdead
	s.stats.Reclaimed++
	s.scheduleLog("reclaim", gp)
}

// ============ Teardown ============

func (s *Scheduler) teardown() error {
	s.done = true
	s.running = nil

	level := slog.LevelError
	if s.err == nil {
		level = slog.LevelWarn
		if len(s.allt) > 0 {
			s.log.Warn("ready queue drained with blocked threads", "blocked", len(s.allt))
		}
		s.stats.Stranded += uint64(len(s.allt))
	}

	stranded := make([]*thread, 0, len(s.allt))
	for _, gp := range s.allt {
		stranded = append(stranded, gp)
	}
	sort.Slice(stranded, func(i, j int) bool { return stranded[i].tid < stranded[j].tid })
	for _, gp := range stranded {
		s.log.Log(context.Background(), level, "stranded thread", "tid", gp.tid,
			"status", statusString(gp.status), "lock", gp.waitLock, "cond", gp.waitCond)
		s.destroy(gp)
	}

	s.runq = threadQueue{}
	s.locks = make(lockTable)
	s.mons = make(monitorTable)
	s.sw.Release(s.main)
	return s.err
}

// ============ Queue transfers ============

func (s *Scheduler) ready(gp *thread) {
	gp.status = _Tready
	s.runq.push(gp)
}

// switchTo hands the CPU from cur, which the caller has already queued
// somewhere, to next.
func (s *Scheduler) switchTo(cur, next *thread) {
	s.checkStack(cur)
	next.status = _Trunning
	s.running = next
	s.stats.Switches++
	s.scheduleLog("switch", next)
	s.sw.Switch(cur.ctx, next.ctx)
}

// park takes the running thread off the CPU after the caller queued it on a
// lock or monitor. With no ready thread the program can never progress, so
// the drive loop is stopped with ErrDeadlock.
func (s *Scheduler) park(op string) {
	cur := s.running
	next := s.runq.pop()
	if next == nil {
		s.fatal(cur, fmt.Errorf("%w: no ready thread to switch to after %s by thread %d", ErrDeadlock, op, cur.tid))
		return
	}
	s.switchTo(cur, next)
}

func (s *Scheduler) fatal(cur *thread, err error) {
	s.err = err
	s.log.Error("no ready thread to switch to, deadlock", "tid", cur.tid, "status", statusString(cur.status))
	s.stats.Switches++
	s.sw.Switch(cur.ctx, s.main)
}

// checkStack panics if the canary at the low end of gp's stack buffer was
// overwritten. GoroutineSwitcher never executes on that buffer, so there the
// check only catches writes through Stack.Bytes; it is a real overflow guard
// only for a Switcher that runs threads on Context.Stack().
func (s *Scheduler) checkStack(gp *thread) {
	if !gp.ctx.stack.intact() {
		panic(fmt.Sprintf("uthread: logical thread stack overflow (thread %d)", gp.tid))
	}
}
