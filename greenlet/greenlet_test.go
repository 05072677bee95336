package greenlet_test

import (
	"sync"
	"testing"
	"time"

	"github.com/PlumpMath/tin/greenlet"
	"github.com/PlumpMath/tin/sched"
)

// TestSwitchToDispatchesAndReturns exercises the core contract without the
// scheduler: a fake g0 dispatches a G, the G runs to completion, and the
// dispatcher's SwitchTo call returns a sched.TaskDone.
func TestSwitchToDispatchesAndReturns(t *testing.T) {
	sw := greenlet.New(nil)
	g0 := sched.NewG(nil, "g0")

	ran := false
	g := sched.NewG(func(*sched.G) {
		ran = true
	}, "worker")

	ret := sw.SwitchTo(g0, g, nil)
	if !ran {
		t.Fatal("G never ran")
	}
	if _, ok := ret.(sched.TaskDone); !ok {
		t.Fatalf("SwitchTo returned %T, want sched.TaskDone", ret)
	}
}

// TestSwitchBackAndForth exercises a G that suspends itself mid-run by
// switching back to g0 and waiting to be resumed — the same shape Park and
// Yield use internally, without depending on the sched package's own
// bookkeeping.
func TestSwitchBackAndForth(t *testing.T) {
	sw := greenlet.New(nil)
	g0 := sched.NewG(nil, "g0")

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	var g *sched.G
	g = sched.NewG(func(self *sched.G) {
		record("start")
		sw.SwitchTo(g, g0, "suspend")
		record("resumed")
		close(done)
	}, "worker")

	ret := sw.SwitchTo(g0, g, nil)
	if s, ok := ret.(string); !ok || s != "suspend" {
		t.Fatalf("first SwitchTo returned %v, want %q", ret, "suspend")
	}

	ret = sw.SwitchTo(g0, g, nil)
	<-done
	if _, ok := ret.(sched.TaskDone); !ok {
		t.Fatalf("second SwitchTo returned %T, want sched.TaskDone", ret)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "start" || order[1] != "resumed" {
		t.Fatalf("order = %v, want [start resumed]", order)
	}
}

// TestDropGRecovered exercises DropG's panic/recover unwind: the
// goroutine running the G's body must not crash the process, and the
// switcher must still report completion to whoever dispatched it.
func TestDropGRecovered(t *testing.T) {
	sw := greenlet.New(nil)
	g0 := sched.NewG(nil, "g0")

	g := sched.NewG(func(self *sched.G) {
		self.DropG()
		t.Error("code after DropG ran")
	}, "dropper")

	done := make(chan any, 1)
	go func() {
		done <- sw.SwitchTo(g0, g, nil)
	}()

	select {
	case ret := <-done:
		if _, ok := ret.(sched.TaskDone); !ok {
			t.Fatalf("SwitchTo returned %T, want sched.TaskDone", ret)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DropG to unwind")
	}
}
