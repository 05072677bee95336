package sched

import "github.com/PlumpMath/tin/errs"

// EnterSyscallBlock marks the current G as about to enter a blocking
// syscall (spec.md §4.7): the owning P is detached, m retains a pointer to
// it so ExitSyscallFast has something to CAS back, and the scheduler may
// decide to hand the P to another M in the meantime.
func (m *M) EnterSyscallBlock() {
	gp := m.CurG()
	if gp == nil || gp == m.g0 {
		panic(errs.Fatalf("EnterSyscallBlock: M%d has no current user G", m.id))
	}
	p := m.P()
	if p == nil {
		panic(errs.Fatalf("EnterSyscallBlock: M%d has no bound P", m.id))
	}
	if !p.casStatus(Prunning, Psyscall) {
		panic(errs.Fatalf("EnterSyscallBlock: P%d is not running (status=%d)", p.ID(), p.Status()))
	}
	gp.setStatus(Gsyscall)
	m.blocked.Store(true)
	sched.HandoffP(p)
}

// ExitSyscall is the combined fast/slow path spec.md §4.7 describes: try
// to reclaim the same P first; if that P has moved on, fall back to
// ExitSyscall0.
func (m *M) ExitSyscall() {
	gp := m.CurG()
	if gp == nil || gp == m.g0 {
		panic(errs.Fatalf("ExitSyscall: M%d has no current user G", m.id))
	}
	m.blocked.Store(false)

	if p := m.exitSyscallFast(); p != nil {
		m.setP(p)
		p.setBoundM(m)
		gp.setStatus(Grunning)
		return
	}
	m.exitSyscall0(gp)
}

// exitSyscallFast CASes m's old P straight from syscall back to running,
// without touching the scheduler lock — the common case where nobody
// handed the P off while m was blocked.
func (m *M) exitSyscallFast() *P {
	p := m.p.Load()
	if p == nil {
		return nil
	}
	if !p.casStatus(Psyscall, Prunning) {
		return nil
	}
	return p
}

// exitSyscall0 is the slow path: the old P is gone, so find any idle P
// (ExitSyscallPIdle) or, failing that, place gp on the global queue and
// retire this M to the idle-M list (spec.md §4.7).
//
// The retire-and-wait has to happen as a switch away from gp, not a direct
// parkWait here: this code runs on gp's own goroutine (ExitSyscall is
// cooperative code), while the M's g0 loop goroutine is the one that
// should block waiting to be reused. Switching to g0 lets g0Loop notice m
// has no P and park there instead; gp itself simply resumes later,
// wherever FindRunnable eventually redispatches it off the global queue,
// with no memory of having taken this path.
func (m *M) exitSyscall0(gp *G) {
	m.setP(nil)

	if p := m.exitSyscallPIdle(); p != nil {
		m.AcquireP(p)
		gp.setStatus(Grunning)
		m.setCurG(gp)
		return
	}

	gp.setStatus(Grunnable)
	sched.GlobalRunqPut(gp)
	gp.setM(nil)

	sched.mu.Lock()
	sched.mputLocked(m)
	sched.mu.Unlock()

	m.switchToG0(gp, syscallParked{})
}

// syscallParked is execute's switch result when exitSyscall0 took the
// slow, no-idle-P path: gp is already back on the global queue, so there
// is nothing left to do for it, but m itself is now without a P and must
// park (handled by g0Loop, not here).
type syscallParked struct{}

// exitSyscallPIdle grabs any idle P for a returning syscall G (spec.md
// §4.7's "ExitSyscallPIdle").
func (m *M) exitSyscallPIdle() *P {
	sched.mu.Lock()
	defer sched.mu.Unlock()
	return sched.pidleGetLocked()
}
