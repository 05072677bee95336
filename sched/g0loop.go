package sched

import (
	"github.com/PlumpMath/tin/errs"
)

// TaskDone is the switch result a ContextSwitcher reports when a G's Run
// method returns — either because the underlying function returned
// normally or because it called DropG (spec.md §4.5, §4.4). Produced by
// the ContextSwitcher implementation (see greenlet.Switcher), not by this
// package, which is why it's exported.
type TaskDone struct{}

// yieldDone and parkDone are the switch results Yield and Park produce;
// both originate inside this package, so unlike TaskDone they stay
// unexported.
type yieldDone struct{}

type parkDone struct{ args parkArgs }

// g0Loop is the infinite scheduling loop each M runs on its private g0
// stack (spec.md §4.4): FindRunnable, then OnSwitch into the G it found,
// forever. It returns only when m is told to shut down: m.dying is set
// (by Shutdown), observed either at the top of the loop or by parkWait
// after a park, which makes FindRunnable return nil.
func (m *M) g0Loop() {
	for {
		if m.dying.Load() {
			return
		}
		if m.P() == nil {
			// Retired by exitSyscall0: wait for StartM to hand us a
			// fresh P before trying to find work with none to find it
			// on.
			if !m.parkWait() {
				return
			}
			continue
		}
		gp, inheritTime := m.FindRunnable()
		if gp == nil {
			return
		}
		m.execute(gp, inheritTime)
	}
}

// execute is OnSwitch (spec.md §4.4): record gp's transition to running,
// bump the P's sched_tick, and hand control to gp until it parks, yields,
// or finishes. inheritTime is accepted for interface parity with spec.md's
// FindRunnable contract but has no effect here — this scheduler is purely
// cooperative, so a dispatched G keeps running until it hits an explicit
// suspension point regardless of whether it "inherited" a time slice.
func (m *M) execute(gp *G, inheritTime bool) {
	_ = inheritTime

	gp.setStatus(Grunning)
	gp.setM(m)
	gp.setCurM(m)
	m.setCurG(gp)
	if p := m.P(); p != nil {
		p.schedTick++
	}

	ret := sched.switcher.SwitchTo(m.g0, gp, nil)

	m.setCurG(m.g0)
	switch v := ret.(type) {
	case TaskDone:
		gp.setM(nil)
	case yieldDone:
		// gp already requeued itself (RunqPut) before switching away.
	case syscallParked:
		// gp already requeued itself (GlobalRunqPut) before switching
		// away; m has no P anymore, g0Loop will notice and park.
	case parkDone:
		m.completePark(gp, v.args)
	default:
		panic(errs.Fatalf("sched: M%d g0Loop got unexpected switch result %T", m.id, ret))
	}
}

// switchToG0 is the half of a switch that runs on gp's own goroutine: it
// hands control to m.g0 carrying result, and blocks until gp is dispatched
// again. Called by Park and Yield, never directly by cooperative code.
func (m *M) switchToG0(gp *G, result any) {
	sched.switcher.SwitchTo(gp, m.g0, result)
}

// Submit schedules a new G (spec.md §6). Called from arbitrary,
// non-scheduler goroutines — there is no bound M/P to hand it to directly,
// so it goes through MakeReady rather than Ready (SPEC_FULL.md Open
// Question 1).
func Submit(fn func(*G), label string) *G {
	gp := NewG(fn, label)
	sched.MakeReady(gp)
	return gp
}

// OneRoundSched runs a single FindRunnable/execute cycle on m's g0 stack
// (spec.md §4.4). It exists for callers that want to drive the loop
// themselves — most notably a yield point that wants to hand the current M
// one slice of scheduling work without recursing into g0Loop's for loop —
// rather than for g0Loop itself, which just calls FindRunnable/execute in a
// bare loop.
func (m *M) OneRoundSched() bool {
	gp, inheritTime := m.FindRunnable()
	if gp == nil {
		return false
	}
	m.execute(gp, inheritTime)
	return true
}
