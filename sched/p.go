package sched

import "sync/atomic"

// P status, spec.md §3.
const (
	Pidle uint32 = iota
	Prunning
	Psyscall
	Pdead
)

// runqCapacity is the fixed ring size (spec.md §3, §4.1): "Fixed-capacity
// ring buffer runq[256]".
const runqCapacity = 256

// P is a logical processor: a scheduling context with a bounded local run
// queue, a one-slot run-next mailbox, and a sched-tick counter. Grounded on
// _examples/Rem-yl-god-rem/.../Proc/src/gmp/types.go's p struct and
// _examples/pianoyeg94-go-runtime-inside-out/scheduler/runtime2.go's p
// struct, generalized from single-goroutine-simulation fields to real
// atomics because multiple M's now genuinely race on this P's ring.
type P struct {
	id int32

	status atomic.Uint32

	runqhead atomic.Uint32
	runqtail atomic.Uint32
	runq     [runqCapacity]atomic.Pointer[G]

	// runnext is the priority slot for the most recently readied G
	// (spec.md §4.1): a pseudo-LIFO locality hint. Only the owning M
	// may CAS this to a non-nil value; any P may CAS it to nil while
	// stealing (spec.md §4.1 RunqSteal).
	runnext atomic.Pointer[G]

	// schedTick counts local dispatches; read by FindRunnable to force
	// a global-queue consult every 61st tick (spec.md §4.3 step 1).
	// Only the owning M increments it, so it's a plain field.
	schedTick uint32

	// m is non-nil iff status is Prunning or Psyscall (spec.md §3).
	m atomic.Pointer[M]

	// link threads this P onto the scheduler's idle-P stack; valid only
	// while status == Pidle and the P is actually on that stack.
	link *P

	// retiring is set by ResizeProc on a surplus P that was Prunning at
	// shrink time — it can't be marked Pdead immediately without racing
	// the M currently using it, so instead pidlePutLocked finishes the
	// job the next time that M releases it naturally (see resizeProcLocked).
	retiring atomic.Bool

	// lastSchedTick/lastSyscallTick are inert bookkeeping carried from
	// the real Go runtime's sysmontick (see
	// pianoyeg94-go-runtime-inside-out/scheduler/proc.go) for a future
	// preemption sysmon this spec explicitly excludes (Non-goals). Nothing
	// in this package reads or writes them; they stay zero.
	lastSchedTick   uint32
	lastSyscallTick uint32
}

func newP(id int32) *P {
	p := &P{id: id}
	p.status.Store(Pidle)
	return p
}

// ID is the P's index in Sched.allp; stable for its lifetime.
func (p *P) ID() int32 { return p.id }

func (p *P) Status() uint32 { return p.status.Load() }

func (p *P) casStatus(old, new uint32) bool {
	return p.status.CompareAndSwap(old, new)
}

// boundM is the M this P is currently bound to, or nil.
func (p *P) boundM() *M { return p.m.Load() }

func (p *P) setBoundM(m *M) { p.m.Store(m) }
