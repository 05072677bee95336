// Package sched implements the scheduling core described by SPEC_FULL.md:
// an M:N scheduler that multiplexes G's onto a small pool of M's, each
// owning at most one P at a time, with per-P local run queues, one global
// run queue, and work-stealing between P's.
//
// The greenlet representation (the stack, the context-switch primitive)
// and the network poller are external collaborators; this package only
// depends on the small interfaces below (ContextSwitcher, NetPoller) and
// never imports the packages that implement them (greenlet, netpoll) —
// avoiding the layering inversion the teacher's single-file gmp package
// doesn't need to worry about but a real multi-package module does.
package sched

import (
	"log"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/PlumpMath/tin/errs"
)

// ContextSwitcher is the out-of-scope greenlet collaborator spec.md §1/§6
// names: "the scheduler consumes an opaque handle plus a SwitchTo(from, to,
// arg) primitive". The default implementation lives in package greenlet.
//
// SwitchTo transfers control from the caller's goroutine to to's, and
// blocks until some later SwitchTo names from as its target again; its
// return value is whatever arg that later call carried. Finish is SwitchTo
// without the wait: it's for the one case where from's goroutine is about
// to exit and will never be resumed — normal G completion and DropG.
type ContextSwitcher interface {
	SwitchTo(from, to *G, arg any) any
	Finish(from, to *G, arg any)
}

// NetPoller is the out-of-scope network-poller collaborator spec.md §1/§6
// names. A nil Poller is valid: FindRunnable simply never finds netpoll
// work. The default implementation lives in package netpoll.
type NetPoller interface {
	NetPoll(blockNs int64) ([]*G, error)
}

// Work is the unit the blocking-offload thread pool executes (spec.md
// §4.8). Defined here rather than in package threadpool so that sched
// doesn't have to import threadpool to expose SubmitGletWork, and
// threadpool doesn't have to import sched's internals to implement Work —
// threadpool depends on sched, not the other way around.
type Work interface {
	// Bind records the G that is parking to await this Work's result, so
	// the implementation can MakeReady it when the work completes.
	Bind(gp *G)
	// Run executes on a pool worker goroutine, never on a scheduler M.
	Run()
}

// WorkSubmitter hands Work to the blocking-offload pool. Injected via
// Config.Pool; package threadpool's *ThreadPool implements it.
type WorkSubmitter interface {
	Submit(w Work)
}

// Config is the configuration Init recognizes (spec.md §6).
type Config struct {
	GOMAXPROCS     int // number of P's; must be >= 1
	MaxM           int // hard ceiling on M creation; 0 -> default 10000
	ThreadPoolSize int // blocking-offload workers; informational only:
	// nothing reads it, threadpool.New takes its worker count as an argument.

	Switch ContextSwitcher // required: the greenlet context-switch primitive
	Poller NetPoller       // optional: nil disables netpoll phases
	Pool   WorkSubmitter   // optional: nil makes SubmitGletWork fatal
	Clock  func() uint32   // optional: defaults to a time.Now()-based clock
	Logger *log.Logger     // optional: defaults to log.Default()
}

// EnvOverride mirrors the teacher's schedinit() (Rem-yl-god-rem Proc/src/
// gmp/proc_rem.go): a valid GOMAXPROCS from the environment wins over
// whatever the caller already set in c; otherwise c.GOMAXPROCS is kept, and
// runtime.NumCPU() is used only if it is unset (<= 0).
func (c *Config) EnvOverride() {
	if v := os.Getenv("GOMAXPROCS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
			c.GOMAXPROCS = int(n)
			return
		}
	}
	if c.GOMAXPROCS <= 0 {
		c.GOMAXPROCS = runtime.NumCPU()
	}
}

// Sched is the process-wide singleton scheduler (spec.md §3, §9). One
// instance is constructed by Init and torn down by Shutdown; a single
// package-level accessor is the "acceptable" form spec.md §9 allows.
type Sched struct {
	mu sync.Mutex // protects everything below except the bare atomics

	// Global intrusive FIFO over G.schedlink (spec.md §4.2).
	runqhead *G
	runqtail *G
	runqsize int32

	pidle   *P // idle-P stack, threaded through P.link
	nrIdleP atomic.Uint32

	midle   *M // idle-M stack, threaded through M.link
	nrIdleM int32

	mcount    int32
	maxMCount int32
	nextMID   int64

	nrSpinning atomic.Uint32

	// lastPoll is milliseconds; 0 means "a poll is currently in flight"
	// (spec.md §3).
	lastPoll atomic.Uint32

	allp []*P
	allm []*M

	switcher ContextSwitcher
	poller   NetPoller
	pool     WorkSubmitter
	clock    func() uint32
	log      *log.Logger

	shuttingDown atomic.Bool
}

// sched is the process-wide instance Init constructs. Accessing it before
// Init or after Shutdown is a programmer error; the exported entry points
// do not check for it, so such a call panics with a nil dereference.
var sched *Sched

// Init initializes the singleton scheduler with cfg.GOMAXPROCS P's and
// spawns one bootstrap M (spec.md §6). A second call before Shutdown
// panics; after Shutdown, Init may be called again.
func Init(cfg Config) *Sched {
	if sched != nil {
		panic(errs.Fatalf("sched.Init: already initialized"))
	}
	if cfg.Switch == nil {
		panic(errs.Fatalf("sched.Init: Config.Switch is required"))
	}
	if cfg.GOMAXPROCS < 1 {
		panic(errs.Fatalf("sched.Init: GOMAXPROCS must be >= 1, got %d", cfg.GOMAXPROCS))
	}
	maxM := cfg.MaxM
	if maxM <= 0 {
		maxM = 10000
	}
	if maxM < cfg.GOMAXPROCS {
		panic(errs.Fatalf("sched.Init: MaxM (%d) must be >= GOMAXPROCS (%d)", maxM, cfg.GOMAXPROCS))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = defaultClock
	}

	s := &Sched{
		maxMCount: int32(maxM),
		switcher:  cfg.Switch,
		poller:    cfg.Poller,
		pool:      cfg.Pool,
		clock:     clock,
		log:       logger,
	}
	sched = s
	s.lastPoll.Store(clock())

	s.resizeProcLocked(int32(cfg.GOMAXPROCS))

	boot := s.allocMLocked()
	bootP := s.pidleGetLocked()
	boot.AcquireP(bootP)

	go boot.g0Loop()

	return s
}

// Get returns the process-wide scheduler, or nil if Init hasn't run.
func Get() *Sched { return sched }

// Shutdown marks every M dying, wakes it so a parked M's g0 loop exits,
// and releases the singleton. It does not wait for the M goroutines to
// exit, does not drain queued G's, and does not stop a G already running;
// shuttingDown is set but nothing reads it. Intended for tests; a
// long-lived process normally never calls it.
func (s *Sched) Shutdown() {
	s.shuttingDown.Store(true)
	s.mu.Lock()
	ms := append([]*M(nil), s.allm...)
	s.mu.Unlock()
	for _, m := range ms {
		m.dying.Store(true)
		m.wake()
	}
	sched = nil
}

func defaultClock() uint32 {
	return uint32(nowMillis())
}
