package sched

import (
	"math/rand"

	"github.com/PlumpMath/tin/errs"
)

// globalBatchMax bounds how many G's FindRunnable pulls from the global
// queue into a P's local ring in one GlobalRunqGet call (spec.md §4.2's
// "max" parameter). The spec leaves the constant to the implementer; 32 is
// the same order of magnitude the real Go runtime uses for its analogous
// batch pulls.
const globalBatchMax = 32

// blockingPollNs is how long the last spinner is willing to block in
// NetPoll when FindRunnable has exhausted every non-blocking source
// (spec.md §4.3 step 7). It's a heuristic, not a correctness knob: any
// ready G cuts the block short because the poller itself is responsible
// for returning early.
const blockingPollNs = int64(10_000_000) // 10ms, matching proc.go's forcePreemptNS order of magnitude

// FindRunnable is the heart of the scheduler (spec.md §4.3). Called by m,
// which must hold a bound P. Returns the G to run next and whether it
// should inherit the caller's remaining time slice.
func (m *M) FindRunnable() (*G, bool) {
	p := m.P()
	if p == nil {
		panic(errs.Fatalf("FindRunnable: M%d has no bound P", m.id))
	}

	// 1. Every 61st dispatch, consult the global queue first so a P
	// that never runs out of local work can't starve the global FIFO
	// (spec.md §4.3 step 1, §8 "61-tick fairness").
	if p.schedTick%61 == 60 {
		if gp := sched.GlobalRunqGet(p, 1); gp != nil {
			return gp, false
		}
	}

	// 2. Local: run-next, then ring head.
	if gp, inherit := p.RunqGet(); gp != nil {
		return gp, inherit
	}

	// 3. Global batch.
	if gp := sched.GlobalRunqGet(p, globalBatchMax); gp != nil {
		return gp, false
	}

	// 4. Non-blocking network poll.
	if sched.poller != nil && sched.lastPoll.Load() != 0 &&
		sched.nrSpinning.Load() == 0 && sched.nrIdleP.Load() == 0 {
		if list := sched.pollOnce(0); len(list) > 0 {
			sched.InjectGList(list)
			if gp, inherit := p.RunqGet(); gp != nil {
				return gp, inherit
			}
		}
	}

	// 5. Steal: become spinning, then up to 4 randomized passes over
	// every P. The final pass also steals run-next.
	wasSpinning := m.Spinning()
	if !wasSpinning {
		m.setSpinning(true)
		sched.nrSpinning.Add(1)
	}

	if gp := m.stealLoop(p); gp != nil {
		m.stopSpinning()
		return gp, false
	}

	// 6. Re-check the global queue under lock.
	if gp := sched.GlobalRunqGet(p, 1); gp != nil {
		m.stopSpinning()
		return gp, false
	}

	// 7. Blocking netpoll, only when this M is the last spinner — so a
	// block here can't hide work from every other M at once.
	if sched.poller != nil && m.Spinning() && sched.nrSpinning.Load() == 1 {
		if list := sched.pollOnce(blockingPollNs); len(list) > 0 {
			sched.InjectGList(list)
			if gp, inherit := p.RunqGet(); gp != nil {
				m.stopSpinning()
				return gp, inherit
			}
		}
	}

	// 8. Nothing anywhere: release P, park. m must rejoin the idle-M
	// stack here (spec.md §4.6 "StartM pops an idle M or creates one") or
	// it can never be handed back out by mgetLocked — StartM would instead
	// allocMLocked a fresh M on every wake, leaking this one until
	// maxMCount is exhausted.
	m.stopSpinning()
	sched.mu.Lock()
	m.ReleaseP()
	sched.pidlePutLocked(p)
	sched.mputLocked(m)
	sched.mu.Unlock()

	if !m.parkWait() {
		return nil, false // told to shut down
	}
	// Whoever woke us (StartM) already bound a fresh P to m.
	return m.FindRunnable()
}

// stealLoop performs spec.md §4.3 step 5's 4 randomized passes.
func (m *M) stealLoop(p *P) *G {
	r := rand.New(rand.NewSource(m.id))
	for pass := 0; pass < 4; pass++ {
		stealNext := pass == 3
		sched.mu.Lock()
		victims := append([]*P(nil), sched.allp...)
		sched.mu.Unlock()
		if len(victims) == 0 {
			return nil
		}
		start := r.Intn(len(victims))
		for i := range victims {
			v := victims[(start+i)%len(victims)]
			if v == p || v.Status() == Pdead {
				continue
			}
			if gp := p.RunqSteal(v, stealNext); gp != nil {
				return gp
			}
		}
	}
	return nil
}

// stopSpinning clears m's spinning flag and, if m was the last active
// spinner, checks whether another M should be woken (spec.md §4.3
// "Spinning discipline"): a producer that just released a G must always
// observe either a live searcher or trigger a wake.
func (m *M) stopSpinning() {
	if !m.Spinning() {
		return
	}
	m.setSpinning(false)
	if subGetU32(&sched.nrSpinning, 1) == 0 {
		sched.WakePIfNecessary()
	}
}

// pollOnce calls the injected NetPoller, if any, swallowing errors: a
// failed poll is equivalent to an empty one (spec.md treats NetPoll as a
// best-effort external collaborator, never a source of scheduler errors —
// §7 "scheduler-internal errors never propagate to G's").
func (s *Sched) pollOnce(blockNs int64) []*G {
	if s.poller == nil {
		return nil
	}
	s.lastPoll.Store(0)
	list, err := s.poller.NetPoll(blockNs)
	s.lastPoll.Store(s.clock())
	if err != nil {
		return nil
	}
	return list
}
