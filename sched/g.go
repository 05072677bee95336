package sched

import (
	"sync"
	"sync/atomic"

	"github.com/PlumpMath/tin/errs"
)

// G status, mirroring the set spec.md §3 names.
const (
	Gidle     uint32 = iota // allocated, not yet runnable
	Grunnable               // on a run queue, not executing
	Grunning                // assigned to an M, executing
	Gsyscall                // executing a syscall on behalf of its M
	Gwaiting                // blocked on a scheduler primitive (Park)
	Gdead                   // done; free for reuse by the caller
)

// G is the scheduled unit: an opaque task handle. The runnable code itself
// (the stack, the context-switch primitive) lives outside this package —
// see the greenlet package — G only carries what the scheduler needs to
// move a task between containers.
//
// Invariant (spec.md §3): a G is reachable from at most one container at a
// time: a P's local queue, the global queue, an M (running or blocked), a
// wait queue external to the scheduler, or the free pool. schedlink is the
// field containers use to form their intrusive lists; only the container
// that currently owns the G may write it.
type G struct {
	id     uint64
	status atomic.Uint32

	// schedlink is the intrusive "next" pointer used by the global run
	// queue's FIFO list and by nothing else — the local ring (p.runq) is
	// array-backed, not linked. Go's atomic.Pointer is already a safe,
	// CAS-able pointer, so unlike the original C++ (and the real Go
	// runtime) there is no need to encode this as an integer to make it
	// CAS-able; see SPEC_FULL.md Open Question 2.
	schedlink atomic.Pointer[G]

	m atomic.Pointer[M] // the M currently running/blocking this G, if any

	// curM is g's "TLS slot" (SPEC_FULL.md Open Question 3): the M
	// presently executing this G's goroutine. Unlike m above — which is
	// scheduler bookkeeping updated at Acquire/Release/Ready boundaries —
	// curM is updated at every dispatch, including a resume after a Park,
	// because work-stealing means the M that parks a G is rarely the M
	// that wakes it back up. Cooperative code never gets a *M directly;
	// it gets *G (itself) and reaches the current M through this slot.
	curM atomic.Pointer[M]

	lastErr atomic.Pointer[error]

	// Label is an optional debug name; never consulted by scheduling
	// logic, only by logging and tests.
	Label string

	// run is the work the greenlet executes; the scheduler never calls
	// it directly, it's invoked by whatever ContextSwitcher the caller
	// configured (see greenlet.Switcher.run, which calls G.Run). It receives the G itself,
	// standing in for the "current task context" a real TLS-backed
	// runtime would hand cooperative code implicitly.
	run func(*G)
}

// NewG allocates a runnable G wrapping fn. Mirrors teacher's newG
// (Rem-yl-god-rem Proc/src/gmp/types.go), generalized with an atomic id
// generator so it's safe to call from multiple M's concurrently — the
// teacher's single-goroutine simulation never needed that.
func NewG(fn func(*G), label string) *G {
	gp := &G{
		id:    nextGID.Add(1),
		Label: label,
		run:   fn,
	}
	gp.status.Store(Grunnable)
	return gp
}

var nextGID atomic.Uint64

// ID returns the G's scheduler-assigned identity. Stable for the G's
// lifetime, never reused.
func (g *G) ID() uint64 { return g.id }

// Status is racy by design: a caller observing it mid-transition gets a
// stale-but-valid snapshot, same as reading runtime.Gosched()'d goroutine
// state in the real runtime.
func (g *G) Status() uint32 { return g.status.Load() }

func (g *G) setStatus(s uint32) { g.status.Store(s) }

// casStatus is the only way terminal-state misuse gets caught: a CAS from
// a status the caller no longer holds is a programmer error, not a race to
// retry (spec.md §7).
func (g *G) casStatus(old, new uint32) bool {
	return g.status.CompareAndSwap(old, new)
}

// SaveLastError records an error surfaced by cooperative code running as
// this G (spec.md §7: "G-visible errors are carried in the G's last-error
// slot, set by cooperative code, never by the scheduler itself"). The one
// exception is threadpool.GletWork, which is cooperative code running on
// the G's behalf on an offload thread.
func (g *G) SaveLastError(err error) {
	g.lastErr.Store(&err)
}

// LastError returns the most recently saved error, or nil.
func (g *G) LastError() error {
	p := g.lastErr.Load()
	if p == nil {
		return nil
	}
	return *p
}

// boundM reports the M currently running or blocking this G, if any.
func (g *G) boundM() *M { return g.m.Load() }

func (g *G) setM(m *M) { g.m.Store(m) }

// CurM returns the M currently executing g's goroutine. Set by the
// scheduler immediately before every dispatch (see (*M).execute); valid to
// call from cooperative code running as g, never from another goroutine.
func (g *G) CurM() *M { return g.curM.Load() }

func (g *G) setCurM(m *M) { g.curM.Store(m) }

// Run executes the G's underlying task. Called by a ContextSwitcher
// implementation (see the greenlet package) from the goroutine it dedicates
// to this G — never by the scheduler core directly, which only ever sees G
// as an opaque handle.
func (g *G) Run() {
	if g.run != nil {
		g.run(g)
	}
}

// --- cooperative-code-facing primitives ---
//
// These all delegate to the M currently running g (g.CurM()), which is the
// Go-idiomatic stand-in for reading a TLS "current M" slot: cooperative
// code never holds an *M of its own, only the *G it was handed, and reaches
// the rest of the scheduler through it. See SPEC_FULL.md Open Question 3.

// Park blocks the calling G until some other G passes it to Ready, as in
// other.Ready(g) (spec.md §4.5). See (*M).Park for the unlock-race semantics.
func (g *G) Park(unlockf UnlockFunc, arg1, arg2 any) {
	g.CurM().Park(unlockf, arg1, arg2)
}

// ParkUnlock is the common-case convenience form of Park.
func (g *G) ParkUnlock(lock sync.Locker) {
	g.CurM().ParkUnlock(lock)
}

// Yield voluntarily gives up the remainder of g's turn (spec.md §4.5).
func (g *G) Yield() {
	g.CurM().Yield()
}

// Ready transitions other from waiting to runnable on g's current M's
// bound P (spec.md §4.5).
func (g *G) Ready(other *G) {
	g.CurM().Ready(other)
}

// EnterSyscallBlock marks g as about to block in a syscall and detaches
// its P for another M to pick up (spec.md §4.7).
func (g *G) EnterSyscallBlock() {
	g.CurM().EnterSyscallBlock()
}

// ExitSyscall reattaches g to a P after a syscall returns (spec.md §4.7).
func (g *G) ExitSyscall() {
	g.CurM().ExitSyscall()
}

// SubmitGletWork offloads w to the blocking-work thread pool and parks g
// until the pool calls Resume (spec.md §4.8).
func (g *G) SubmitGletWork(w Work) {
	if sched.pool == nil {
		panic(errs.Fatalf("SubmitGletWork: no WorkSubmitter configured"))
	}
	w.Bind(g)
	sched.pool.Submit(w)
	g.Park(nil, nil, nil)
}

// DropG detaches g from the scheduler without requeueing it anywhere and
// unwinds g's goroutine immediately (spec.md §4.5). Must be the last thing
// cooperative code ever does — nothing after the call executes. Modeled on
// runtime.Goexit: a panic carrying a recognizable sentinel that the
// ContextSwitcher's dispatch loop recovers and treats as normal
// completion, never as a genuine task failure.
func (g *G) DropG() {
	g.setStatus(Gdead)
	panic(dropSignal{})
}

// dropSignal is the panic value DropG raises. A ContextSwitcher
// implementation recovers it in the goroutine it dedicates to a G and
// treats the G as having finished normally — see greenlet.Switcher.run.
type dropSignal struct{}

// IsDropSignal reports whether a recovered panic value came from DropG,
// as opposed to a genuine panic in cooperative code that a ContextSwitcher
// should still log and surface as the G's last error.
func IsDropSignal(v any) bool {
	_, ok := v.(dropSignal)
	return ok
}
