// Package threadpool implements sched.WorkSubmitter: the fixed group of
// blocking-offload worker threads spec.md §4.8 describes, for operations
// that aren't safe to run on a scheduler M because the OS call underneath
// them can't be cancelled or interrupted (the canonical example, and the
// only one this module wires up end to end, is name resolution —
// net.LookupHost has no context-aware variant and can block for the
// platform resolver's full timeout).
//
// Grounded on the shared-deque-plus-mutex-and-condvar shape spec.md asks
// for and on the pool/executor split other_examples/momentics-hioload-ws
// shows for a NUMA-aware worker pool — generalized here to the plain
// fixed-size case since this module has no NUMA topology to pin to.
package threadpool

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/PlumpMath/tin/sched"
)

// Work is re-exported for callers that want the interface name local to
// this package; it's identical to sched.Work.
type Work = sched.Work

// ThreadPool is a fixed group of worker goroutines pulling Work off a
// shared deque (spec.md §4.8). It implements sched.WorkSubmitter, so it
// plugs into sched.Config.Pool directly.
type ThreadPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	deque   []Work
	closed  bool
	workers int

	log *log.Logger
}

// New starts a ThreadPool with the given number of worker goroutines. A
// nil logger defaults to log.Default().
func New(workers int, logger *log.Logger) *ThreadPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	tp := &ThreadPool{workers: workers, log: logger}
	tp.cond = sync.NewCond(&tp.mu)
	for i := 0; i < workers; i++ {
		go tp.worker(i)
	}
	return tp
}

// Submit implements sched.WorkSubmitter (spec.md §4.8): hands w to the
// shared deque and wakes one worker.
func (tp *ThreadPool) Submit(w Work) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.closed {
		panic("threadpool: Submit after Close")
	}
	tp.deque = append(tp.deque, w)
	tp.cond.Signal()
}

// Close stops accepting new work and wakes every idle worker, then returns
// at once: it waits neither for the workers to exit nor for in-flight or
// still-queued Work, which the workers go on to finish before exiting.
func (tp *ThreadPool) Close() {
	tp.mu.Lock()
	tp.closed = true
	tp.cond.Broadcast()
	tp.mu.Unlock()
}

func (tp *ThreadPool) worker(id int) {
	for {
		w := tp.pop()
		if w == nil {
			return
		}
		tp.runOne(id, w)
	}
}

func (tp *ThreadPool) pop() Work {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	for len(tp.deque) == 0 {
		if tp.closed {
			return nil
		}
		tp.cond.Wait()
	}
	w := tp.deque[0]
	tp.deque = tp.deque[1:]
	return w
}

// runOne executes w, recovering a panic so one bad Work item can't take
// down a worker goroutine the pool depends on for everything else.
func (tp *ThreadPool) runOne(id int, w Work) {
	defer func() {
		if r := recover(); r != nil {
			tp.log.Printf("threadpool: worker %d: Work panicked: %v", id, r)
		}
	}()
	w.Run()
}

// GletWork is the sched.Work spec.md §4.8 describes: a closure executed on
// a pool worker, which Readies the submitting G (Resume) when it
// completes, or records an error and Readies it anyway (Finalize) on
// failure — cooperative code distinguishes the two by checking
// gp.LastError() after it wakes.
type GletWork struct {
	fn func() error
	gp *sched.G
}

// NewGletWork wraps an arbitrary blocking fn for offload (spec.md §4.8
// "SubmitGletWork").
func NewGletWork(fn func() error) *GletWork {
	return &GletWork{fn: fn}
}

// Bind implements sched.Work: records the G parking to await this item.
func (w *GletWork) Bind(gp *sched.G) { w.gp = gp }

// Run implements sched.Work: executes fn on the pool worker goroutine and
// dispatches to Resume or Finalize depending on the outcome.
func (w *GletWork) Run() {
	if err := w.fn(); err != nil {
		w.Finalize(err)
		return
	}
	w.Resume()
}

// Resume implements spec.md §4.8's completion path: Ready the parked G on
// whatever P is around (MakeReady — the pool worker has no bound M/P of
// its own, per SPEC_FULL.md Open Question 1).
func (w *GletWork) Resume() {
	sched.Get().MakeReady(w.gp)
}

// Finalize implements spec.md §4.8's failure path: record the error where
// the G will see it on LastError, then Ready it exactly as Resume would —
// the G, not the pool, decides how to react to a failed offload.
func (w *GletWork) Finalize(err error) {
	w.gp.SaveLastError(err)
	sched.Get().MakeReady(w.gp)
}

// SubmitGetAddrInfoGletWork offloads a DNS lookup to the pool (spec.md
// §4.8's explicitly named example of work that can't run on a scheduler
// M). The calling G parks until the lookup completes; the resolved
// addresses are delivered via the returned *AddrResult, which is only
// safe to read after the G resumes.
func SubmitGetAddrInfoGletWork(gp *sched.G, host string) *AddrResult {
	res := &AddrResult{}
	w := NewGletWork(func() error {
		addrs, err := net.DefaultResolver.LookupHost(context.Background(), host)
		if err != nil {
			return fmt.Errorf("threadpool: lookup %q: %w", host, err)
		}
		res.Addrs = addrs
		return nil
	})
	gp.SubmitGletWork(w)
	return res
}

// AddrResult carries a GetAddrInfo lookup's result back to the G that
// requested it.
type AddrResult struct {
	Addrs []string
}
