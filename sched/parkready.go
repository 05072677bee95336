package sched

import (
	"sync"

	"github.com/PlumpMath/tin/errs"
)

// UnlockFunc is the callback Park invokes, after the stack switch, to
// release whatever the caller was holding (spec.md §4.5). Returning false
// means the G lost the race it was parking for and should be re-readied
// immediately instead of staying parked.
type UnlockFunc func(arg1, arg2 any) bool

// Ready transitions gp from waiting to runnable and inserts it into m's
// bound P with next=true (spec.md §4.5). Requires m to hold a P — callers
// without one (a thread-pool worker, code outside any M) must use
// MakeReady instead, per SPEC_FULL.md Open Question 1.
func (m *M) Ready(gp *G) {
	p := m.P()
	if p == nil {
		panic(errs.Fatalf("Ready: M%d has no bound P; use MakeReady", m.id))
	}
	gp.setStatus(Grunnable)
	p.RunqPut(gp, true)

	if !p.RunqEmpty() && sched.nrIdleP.Load() > 0 {
		sched.WakePIfNecessary()
	}
}

// MakeReady is Ready's P-less twin (spec.md §9 Open Question, resolved in
// SPEC_FULL.md Open Question 1): always places gp on the global queue and
// wakes an idle P, the only safe thing a caller with no bound P can do.
// The threadpool package's workers are the canonical caller.
func (s *Sched) MakeReady(gp *G) {
	gp.setStatus(Grunnable)
	s.GlobalRunqPut(gp)
	s.wakeupP()
}

// wakeupP pops an idle P (if any) and starts an M on it.
func (s *Sched) wakeupP() {
	s.mu.Lock()
	p := s.pidleGetLocked()
	s.mu.Unlock()
	if p == nil {
		return
	}
	s.StartM(p, false)
}

// WakePIfNecessary wakes another M when there's both idle work and an idle
// P but nobody is spinning to find it (spec.md §4.3 "Spinning discipline").
func (s *Sched) WakePIfNecessary() {
	if s.nrSpinning.Load() != 0 {
		return
	}
	if s.nrIdleP.Load() == 0 {
		return
	}
	if s.GlobalRunqSize() == 0 {
		return
	}
	s.wakeupP()
}

// Park declares that the current G (m.CurG()) is about to block (spec.md
// §4.5). It hands control back to g0 via the configured ContextSwitcher;
// once g0 resumes, it calls unlockf(arg1, arg2). A false return means the
// caller lost the race it was parking for (e.g. the condition it wanted to
// wait on became true between checking and calling Park), so the G is
// re-readied immediately instead of staying parked.
func (m *M) Park(unlockf UnlockFunc, arg1, arg2 any) {
	gp := m.CurG()
	if gp == nil || gp == m.g0 {
		panic(errs.Fatalf("Park: M%d has no current user G", m.id))
	}
	gp.setStatus(Gwaiting)

	m.switchToG0(gp, parkDone{parkArgs{unlockf: unlockf, arg1: arg1, arg2: arg2}})
}

type parkArgs struct {
	unlockf UnlockFunc
	arg1    any
	arg2    any
}

// completePark runs on g0 immediately after the switch away from gp
// (spec.md §4.5: "the scheduler records the unlock function... which after
// the switch atomically calls unlockf"). It's invoked by the g0 loop, not
// by Park itself, because by the time it must run, execution is on g0's
// stack (emulated here as g0's own call frame in g0Loop).
func (m *M) completePark(gp *G, args parkArgs) {
	ok := true
	if args.unlockf != nil {
		ok = args.unlockf(args.arg1, args.arg2)
	}
	if !ok {
		m.Ready(gp)
	}
}

// ParkUnlock is the common-case convenience form of Park: release a
// sync.Locker after the switch (spec.md §4.5).
func (m *M) ParkUnlock(lock sync.Locker) {
	m.Park(func(a1, a2 any) bool {
		a1.(sync.Locker).Unlock()
		return true
	}, lock, nil)
}

// Yield voluntarily gives up the remainder of the current G's turn: it
// goes back on the local ring's tail and control returns to g0 (spec.md
// §4.5). Unlike Park, the G stays runnable throughout.
func (m *M) Yield() {
	gp := m.CurG()
	if gp == nil || gp == m.g0 {
		panic(errs.Fatalf("Yield: M%d has no current user G", m.id))
	}
	p := m.P()
	if p == nil {
		panic(errs.Fatalf("Yield: M%d has no bound P", m.id))
	}
	gp.setStatus(Grunnable)
	p.RunqPut(gp, false)
	m.switchToG0(gp, yieldDone{})
}
