package uthread

import "runtime"

// Context is the saved execution state of one flow of control. The Switcher
// that configured it owns impl.
type Context struct {
	stack Stack
	impl  any
}

// Stack returns the buffer owned by c.
func (c *Context) Stack() Stack { return c.stack }

// Switcher is the low-level capability the Scheduler needs to move the single
// flow of control between contexts.
type Switcher interface {
	// Capture binds c to the caller, making it a context that can later be
	// switched back into. The scheduler captures its root context this way.
	Capture(c *Context) error

	// Configure prepares c so that the first switch into it calls entry on
	// stack. entry must never return; it ends by switching away.
	Configure(c *Context, stack Stack, entry func()) error

	// Switch saves the caller into from and resumes to. It returns when some
	// later Switch names from as its target.
	Switch(from, to *Context)

	// Release destroys a dormant context. A released context never runs again.
	Release(c *Context)
}

// GoroutineSwitcher runs every configured context on its own goroutine and
// passes a single baton between them, so exactly one of them executes at a
// time.
type GoroutineSwitcher struct{}

type goContext struct {
	wake     chan bool // true resumes, false terminates
	exited   chan struct{}
	captured bool
}

func (GoroutineSwitcher) Capture(c *Context) error {
	c.impl = &goContext{wake: make(chan bool, 1), captured: true}
	return nil
}

func (GoroutineSwitcher) Configure(c *Context, stack Stack, entry func()) error {
	gc := &goContext{
		wake:   make(chan bool, 1),
		exited: make(chan struct{}),
	}
	c.stack = stack
	c.impl = gc

	go func() {
		defer close(gc.exited)
		if !<-gc.wake {
			return
		}
		entry()
	}()
	return nil
}

func (GoroutineSwitcher) Switch(from, to *Context) {
	to.impl.(*goContext).wake <- true
	if !<-from.impl.(*goContext).wake {
		runtime.Goexit()
	}
}

func (GoroutineSwitcher) Release(c *Context) {
	gc, ok := c.impl.(*goContext)
	if !ok || gc.captured {
		return
	}
	gc.wake <- false
	<-gc.exited
	c.impl = nil
}
