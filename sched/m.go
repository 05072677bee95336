package sched

import "sync/atomic"

// M is an OS-thread stand-in: in this Go rendition, a dedicated goroutine
// running the g0 loop (spec.md §4.4). Grounded on
// _examples/Rem-yl-god-rem/.../Proc/src/gmp/types.go's m struct, with the
// bound-P pointer and spinning flag promoted to atomics because, unlike the
// teacher's single-goroutine simulation, M's here genuinely run in
// parallel.
type M struct {
	id int64

	p        atomic.Pointer[P]
	spinning atomic.Bool

	// g0 is this M's scheduling-loop pseudo-G; curG points at g0 while
	// the loop itself is running and at the real current G while one is
	// executing (spec.md §4.4, §9 "per-M park event").
	g0   *G
	curG atomic.Pointer[G]

	// park is the single-slot binary semaphore spec.md §4.6/§9
	// describes: StartM signals it to wake a parked M. Depth 1 so a
	// signal sent before the M gets around to receiving isn't lost, and
	// a second signal before the first is consumed doesn't block the
	// sender (spurious-wakeup-tolerant per §9).
	park chan struct{}

	// blocked is set while this M is between EnterSyscallBlock and
	// ExitSyscall. It is bookkeeping only: nothing in this package reads
	// it.
	blocked atomic.Bool

	// link threads this M onto the scheduler's idle-M stack.
	link *M

	dying atomic.Bool // set by Shutdown; the g0 loop exits after noticing it
}

func newM(id int64) *M {
	m := &M{id: id, park: make(chan struct{}, 1)}
	m.g0 = &G{id: 0, Label: "g0"}
	m.g0.status.Store(Grunning)
	m.curG.Store(m.g0)
	return m
}

// ID is the M's scheduler-assigned identity.
func (m *M) ID() int64 { return m.id }

// P returns the P currently bound to m, or nil.
func (m *M) P() *P { return m.p.Load() }

func (m *M) setP(p *P) { m.p.Store(p) }

// Spinning reports whether m is actively searching for work.
func (m *M) Spinning() bool { return m.spinning.Load() }

func (m *M) setSpinning(v bool) { m.spinning.Store(v) }

// CurG is the "TLS slot" spec.md §6 asks for, realized without a real
// thread-local: an atomic field read and written by this M's g0 loop and
// by the G it is currently running (Park, Yield and the syscall path read
// it from that G's goroutine), threaded through explicit *M parameters
// (SPEC_FULL.md Open Question 3) without the fragility of faking TLS over
// goroutine IDs.
func (m *M) CurG() *G { return m.curG.Load() }

func (m *M) setCurG(g *G) { m.curG.Store(g) }

// wake signals m's park event. Safe to call any number of times; the
// channel's depth-1 buffer coalesces redundant wakes into one pending
// signal, matching the "no spurious permits combined" semantics spec.md §9
// asks for (a second wake while one is already pending is simply dropped,
// not queued — the M only needed to be told "there is work", not how many
// times).
func (m *M) wake() {
	select {
	case m.park <- struct{}{}:
	default:
	}
}

// parkWait blocks until woken or m is told to shut down. Returns false if
// the M should exit its g0 loop instead of resuming scheduling.
func (m *M) parkWait() bool {
	<-m.park
	return !m.dying.Load()
}
