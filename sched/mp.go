package sched

import (
	"github.com/PlumpMath/tin/errs"
)

// --- idle-P stack (spec.md §4.6, §9) ---

func (s *Sched) pidlePutLocked(p *P) {
	if !p.RunqEmpty() {
		panic(errs.Fatalf("pidlePut: P%d has a non-empty run queue", p.ID()))
	}
	if p.retiring.Load() {
		// A ResizeProc shrink caught this P while it was still running;
		// now that its M has released it, finish retiring it instead of
		// putting it back into rotation.
		p.status.Store(Pdead)
		return
	}
	p.status.Store(Pidle)
	p.link = s.pidle
	s.pidle = p
	s.nrIdleP.Add(1)
}

func (s *Sched) pidleGetLocked() *P {
	p := s.pidle
	if p == nil {
		return nil
	}
	s.pidle = p.link
	p.link = nil
	subU32(&s.nrIdleP, 1)
	return p
}

// rebuildIdleListLocked recomputes the idle-P stack from allp's current
// statuses. Used only at Init and ResizeProc boundaries, where the coarse
// lock is already held and a full rescan is cheap relative to how rarely
// GOMAXPROCS changes.
func (s *Sched) rebuildIdleListLocked() {
	s.pidle = nil
	var n uint32
	for _, p := range s.allp {
		if p.Status() == Pidle {
			p.link = s.pidle
			s.pidle = p
			n++
		}
	}
	s.nrIdleP.Store(n)
}

// --- idle-M stack (spec.md §4.6) ---

func (s *Sched) mputLocked(m *M) {
	m.link = s.midle
	s.midle = m
	s.nrIdleM++
}

func (s *Sched) mgetLocked() *M {
	m := s.midle
	if m == nil {
		return nil
	}
	s.midle = m.link
	m.link = nil
	s.nrIdleM--
	return m
}

// allocMLocked creates a new M, bounded by maxMCount (spec.md §6, §7:
// "Exceeding MaxM" is a fatal programmer-misuse condition — in practice a
// configuration error, since it means the workload needs more concurrency
// than the operator provisioned for).
func (s *Sched) allocMLocked() *M {
	if s.mcount >= s.maxMCount {
		panic(errs.Fatalf("sched: exceeded MaxM (%d)", s.maxMCount))
	}
	s.nextMID++
	m := newM(s.nextMID)
	s.allm = append(s.allm, m)
	s.mcount++
	return m
}

// resizeProcLocked adjusts the number of P's (spec.md §3 "Lifecycles").
// Growing appends new idle P's. Shrinking marks surplus P's dead and drains
// their run queues to the global queue; a surplus P still bound to a
// running M is left bound (this module doesn't preempt a running M to
// reclaim its P — see DESIGN.md) and is instead flagged retiring, so
// pidlePutLocked finishes marking it dead once that M releases it on its
// own. allp never shrinks: dead entries are skipped by every loop that
// walks allp, the same way the real Go runtime never shrinks its allp
// slice either.
func (s *Sched) resizeProcLocked(nprocs int32) {
	old := int32(len(s.allp))
	for i := old; i < nprocs; i++ {
		s.allp = append(s.allp, newP(i))
	}
	for i := nprocs; i < int32(len(s.allp)); i++ {
		p := s.allp[i]
		switch p.Status() {
		case Pdead:
			continue
		case Pidle:
			p.moveRunqToGlobalLocked()
			p.status.Store(Pdead)
		default: // Prunning or Psyscall: can't safely touch it here
			p.retiring.Store(true)
		}
	}
	s.rebuildIdleListLocked()
}

// ResizeProc is the public entry point for changing GOMAXPROCS at runtime
// (spec.md §3, §8 scenario 5).
func (s *Sched) ResizeProc(nprocs int) {
	if nprocs < 1 {
		panic(errs.Fatalf("ResizeProc: nprocs must be >= 1, got %d", nprocs))
	}
	s.mu.Lock()
	s.resizeProcLocked(int32(nprocs))
	s.mu.Unlock()
}

// AcquireP binds m to p (spec.md §4.6). p.status must be Pidle.
func (m *M) AcquireP(p *P) {
	if m.P() != nil {
		panic(errs.Fatalf("AcquireP: M%d already bound to P%d", m.id, m.P().ID()))
	}
	if !p.casStatus(Pidle, Prunning) {
		panic(errs.Fatalf("AcquireP: P%d is not idle (status=%d)", p.ID(), p.Status()))
	}
	p.setBoundM(m)
	m.setP(p)
	m.setCurG(m.g0)
}

// ReleaseP is AcquireP's inverse (spec.md §4.6).
func (m *M) ReleaseP() *P {
	p := m.P()
	if p == nil {
		panic(errs.Fatalf("ReleaseP: M%d has no bound P", m.id))
	}
	if !p.casStatus(Prunning, Pidle) {
		panic(errs.Fatalf("ReleaseP: P%d is not running (status=%d)", p.ID(), p.Status()))
	}
	p.setBoundM(nil)
	m.setP(nil)
	return p
}

// StartM wakes an idle M or creates one, then binds it to p (spec.md
// §4.6). If spinning, the caller must already have incremented
// sched.nrSpinning — StartM only sets the flag on the M it starts, it
// never touches the counter itself, so a second producer can't race to
// wake yet another M believing no one is searching.
func (s *Sched) StartM(p *P, spinning bool) {
	// p arrives either Pidle (the common case, from wakeupP/pidleGetLocked)
	// or already Prunning (HandoffP's "needed" branch already moved it
	// there itself, so this store is a harmless no-op); either way p must be
	// Prunning by the time mp starts using it, or its eventual ReleaseP's
	// CAS(running->idle) has nothing to transition from.
	p.status.Store(Prunning)

	s.mu.Lock()
	mp := s.mgetLocked()
	if mp == nil {
		mp = s.allocMLocked()
		s.mu.Unlock()
		mp.setSpinning(spinning)
		mp.setP(p)
		p.setBoundM(mp)
		go mp.g0Loop()
		return
	}
	s.mu.Unlock()
	mp.setSpinning(spinning)
	mp.setP(p)
	p.setBoundM(mp)
	mp.wake()
}

// pollDueLocked approximates spec.md §4.6's "a network poll is due": the
// poller is wired in and no poll is currently mid-flight.
func (s *Sched) pollDueLocked() bool {
	return s.poller != nil && s.lastPoll.Load() != 0
}

// HandoffP transfers p to another M when the current M is about to block
// on a syscall and p still has reason to keep running (spec.md §4.6, §4.7).
// If none of the four conditions hold, p is simply parked.
func (s *Sched) HandoffP(p *P) {
	needed := !p.RunqEmpty() ||
		s.GlobalRunqSize() > 0 ||
		(s.nrSpinning.Load()+s.nrIdleP.Load() == 0)

	s.mu.Lock()
	if !needed {
		needed = s.pollDueLocked()
	}
	s.mu.Unlock()

	if !needed {
		p.setBoundM(nil)
		s.mu.Lock()
		s.pidlePutLocked(p)
		s.mu.Unlock()
		return
	}
	// p is being handed to a new M rather than going idle: move its
	// status straight from syscall to running so the old M's eventual
	// ExitSyscallFast CAS(syscall->running) correctly fails and falls
	// through to the slow path instead of reclaiming a P someone else
	// already owns.
	p.status.Store(Prunning)
	s.StartM(p, false)
}
