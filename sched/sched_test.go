package sched_test

import (
	"sync"
	"testing"
	"time"

	"github.com/PlumpMath/tin/greenlet"
	"github.com/PlumpMath/tin/sched"
)

// initTest spins up a fresh scheduler for the duration of one test. The
// package singleton means tests can't run in parallel with each other —
// same constraint the teacher's own gmp.Init() singleton has.
func initTest(t *testing.T, nprocs int) *sched.Sched {
	t.Helper()
	s := sched.Init(sched.Config{GOMAXPROCS: nprocs, Switch: greenlet.New(nil)})
	t.Cleanup(s.Shutdown)
	return s
}

// TestSubmitRunsEveryG covers §8 scenario 1: three G's submitted to a
// two-P scheduler all eventually run, whichever M ends up running each.
func TestSubmitRunsEveryG(t *testing.T) {
	initTest(t, 2)

	var wg sync.WaitGroup
	wg.Add(3)
	var mu sync.Mutex
	ran := map[string]bool{}

	for _, label := range []string{"g1", "g2", "g3"} {
		l := label
		sched.Submit(func(gp *sched.G) {
			defer wg.Done()
			mu.Lock()
			ran[l] = true
			mu.Unlock()
		}, l)
	}

	waitOrTimeout(t, &wg, 2*time.Second)

	for _, l := range []string{"g1", "g2", "g3"} {
		if !ran[l] {
			t.Errorf("G %q never ran", l)
		}
	}
}

// TestParkReady covers the Park/Ready round trip (spec.md §4.5): a G
// parks, another G readies it, and the parked G observes the effect of
// whatever the unlock function did.
func TestParkReady(t *testing.T) {
	initTest(t, 1)

	var mu sync.Mutex
	shared := 0
	var parked *sched.G
	var handoff sync.WaitGroup
	handoff.Add(1)

	var done sync.WaitGroup
	done.Add(2)

	sched.Submit(func(gp *sched.G) {
		defer done.Done()
		mu.Lock()
		parked = gp
		handoff.Done()
		gp.ParkUnlock(&mu)
		if shared != 1 {
			t.Errorf("shared = %d after resume, want 1", shared)
		}
	}, "parker")

	sched.Submit(func(gp *sched.G) {
		defer done.Done()
		handoff.Wait()
		for {
			mu.Lock()
			p := parked
			mu.Unlock()
			if p != nil {
				mu.Lock()
				shared = 1
				mu.Unlock()
				gp.Ready(p)
				return
			}
		}
	}, "readier")

	waitOrTimeout(t, &done, 2*time.Second)
}

// TestYieldRequeues covers Yield (spec.md §4.5): a yielding G goes back on
// the local ring and eventually resumes.
func TestYieldRequeues(t *testing.T) {
	initTest(t, 1)

	var done sync.WaitGroup
	done.Add(1)
	yields := 0

	sched.Submit(func(gp *sched.G) {
		defer done.Done()
		for yields < 3 {
			yields++
			gp.Yield()
		}
	}, "yielder")

	waitOrTimeout(t, &done, 2*time.Second)
	if yields != 3 {
		t.Fatalf("yields = %d, want 3", yields)
	}
}

// TestDropG covers DropG (spec.md §4.5): a G that drops itself never runs
// the code after the call, and the scheduler doesn't hang waiting on it.
func TestDropG(t *testing.T) {
	initTest(t, 1)

	var done sync.WaitGroup
	done.Add(1)
	reachedAfter := false

	sched.Submit(func(gp *sched.G) {
		defer done.Done()
		gp.DropG()
		reachedAfter = true // must never run
	}, "dropper")

	waitOrTimeout(t, &done, 2*time.Second)
	if reachedAfter {
		t.Fatal("code after DropG ran")
	}
}

// TestSyscallBoundary covers §8 scenario 2: a G blocked in a simulated
// syscall doesn't stop the rest of the workload from making progress, and
// resumes successfully afterward.
func TestSyscallBoundary(t *testing.T) {
	initTest(t, 2)

	var done sync.WaitGroup
	done.Add(3)
	var mu sync.Mutex
	othersRanDuringSyscall := false

	sched.Submit(func(gp *sched.G) {
		defer done.Done()
		gp.EnterSyscallBlock()
		time.Sleep(30 * time.Millisecond)
		gp.ExitSyscall()
	}, "blocker")

	for i := 0; i < 2; i++ {
		sched.Submit(func(gp *sched.G) {
			defer done.Done()
			mu.Lock()
			othersRanDuringSyscall = true
			mu.Unlock()
		}, "other")
	}

	waitOrTimeout(t, &done, 2*time.Second)
	if !othersRanDuringSyscall {
		t.Fatal("no other G ran while blocker was in its simulated syscall")
	}
}

// TestResizeProcDrainsSurplus covers §8 scenario 5: shrinking GOMAXPROCS
// drains the surplus P's queues to the global queue instead of losing
// their G's.
func TestResizeProcDrainsSurplus(t *testing.T) {
	s := initTest(t, 4)

	var done sync.WaitGroup
	done.Add(20)
	for i := 0; i < 20; i++ {
		sched.Submit(func(gp *sched.G) { done.Done() }, "g")
	}

	s.ResizeProc(2)
	waitOrTimeout(t, &done, 2*time.Second)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	c := make(chan struct{})
	go func() {
		wg.Wait()
		close(c)
	}()
	select {
	case <-c:
	case <-time.After(d):
		t.Fatal("timed out waiting for G's to finish")
	}
}
