package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dentiny/C-Utility/uthread"
	"github.com/samber/do"
)

// Dining philosophers on uthread monitors. The forks are flags guarded by
// the table lock; a hungry philosopher waits on the table until both of its
// forks are free.
const (
	table  uthread.LockID = 0
	forkCV uthread.CondID = 1
)

const (
	nforks   = 5
	servings = 3
)

func newInjector(configPath string) *do.Injector {
	injector := do.New()

	do.Provide(injector, func(i *do.Injector) (*uthread.Config, error) {
		if configPath == "" {
			cfg := uthread.DefaultConfig()
			return cfg, uthread.ApplyEnv(cfg)
		}
		return uthread.LoadConfig(configPath)
	})
	do.Provide(injector, func(i *do.Injector) (uthread.Allocator, error) {
		cfg, err := do.Invoke[*uthread.Config](i)
		if err != nil {
			return nil, err
		}
		return uthread.NewAllocator(cfg)
	})
	do.Provide(injector, func(i *do.Injector) (uthread.Switcher, error) {
		return uthread.GoroutineSwitcher{}, nil
	})
	do.Provide(injector, func(i *do.Injector) (*uthread.Scheduler, error) {
		cfg, err := do.Invoke[*uthread.Config](i)
		if err != nil {
			return nil, err
		}
		alloc, err := do.Invoke[uthread.Allocator](i)
		if err != nil {
			return nil, err
		}
		sw := do.MustInvoke[uthread.Switcher](i)
		return uthread.NewScheduler(cfg, alloc, sw, nil), nil
	})

	return injector
}

// serve runs philosopher n through all of its meals. Any scheduler error
// ends the meal loop, since the fork flags can no longer be trusted.
func serve(sched *uthread.Scheduler, busy []bool, n int, w io.Writer) error {
	left, right := n, (n+1)%nforks
	for meal := 1; meal <= servings; meal++ {
		if err := sched.Lock(table); err != nil {
			return err
		}
		for busy[left] || busy[right] {
			if err := sched.Wait(table, forkCV); err != nil {
				return err
			}
		}
		busy[left], busy[right] = true, true
		if err := sched.Unlock(table); err != nil {
			return err
		}

		fmt.Fprintf(w, "philosopher %d (thread %d) eats meal %d\n", n, sched.Self(), meal)
		if err := sched.Yield(); err != nil {
			return err
		}

		if err := sched.Lock(table); err != nil {
			return err
		}
		busy[left], busy[right] = false, false
		if err := sched.Broadcast(table, forkCV); err != nil {
			return err
		}
		if err := sched.Unlock(table); err != nil {
			return err
		}
		if err := sched.Yield(); err != nil {
			return err
		}
	}
	return nil
}

func dine(sched *uthread.Scheduler, w io.Writer) error {
	busy := make([]bool, nforks)
	var failed error
	philosopher := func(arg any) {
		n := arg.(int)
		if err := serve(sched, busy, n, w); err != nil {
			fmt.Fprintf(w, "philosopher %d: %v\n", n, err)
			if failed == nil {
				failed = fmt.Errorf("philosopher %d: %w", n, err)
			}
		}
	}

	err := sched.Run(func(any) {
		for i := 0; i < nforks; i++ {
			if _, err := sched.Spawn(philosopher, i); err != nil {
				fmt.Fprintf(w, "spawn philosopher %d: %v\n", i, err)
			}
		}
	}, nil)
	if err != nil {
		return err
	}
	return failed
}

func main() {
	configPath := flag.String("config", "", "TOML config file (defaults plus UTHREAD_* environment if empty)")
	flag.Parse()

	injector := newInjector(*configPath)
	sched, err := do.Invoke[*uthread.Scheduler](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uthread-demo: %v\n", err)
		os.Exit(1)
	}

	err = dine(sched, os.Stdout)
	st := sched.Stats()
	fmt.Printf("threads: %d spawned, %d reclaimed, %d context switches\n", st.Spawned, st.Reclaimed, st.Switches)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uthread-demo: %v\n", err)
		os.Exit(1)
	}
}
