package sched

import "runtime"

// RunqPut places gp into p's runnable set (spec.md §4.1). Must be called
// only by the M that owns p, except during bootstrap before any M is bound.
// If next, gp becomes the new run-next slot and the slot's previous
// occupant (if any) is pushed into the ring instead.
func (p *P) RunqPut(gp *G, next bool) {
	if next {
		for {
			oldnext := p.runnext.Load()
			if !p.runnext.CompareAndSwap(oldnext, gp) {
				continue
			}
			if oldnext == nil {
				gp.setStatus(Grunnable)
				return
			}
			// Kick the previous run-next occupant into the ring so it
			// isn't lost — it just loses its locality priority.
			gp.setStatus(Grunnable)
			gp = oldnext
			break
		}
	}

retry:
	h := p.runqhead.Load()
	t := p.runqtail.Load()
	if t-h < runqCapacity {
		p.runq[t%runqCapacity].Store(gp)
		p.runqtail.Store(t + 1)
		gp.setStatus(Grunnable)
		return
	}
	if p.runqPutSlow(gp, h, t) {
		return
	}
	goto retry
}

// runqPutSlow is the overflow path: half the ring (rounded down) plus gp
// are moved to the global queue in one batch. Requires the caller to have
// already observed the ring full at (h, t); on a lost race against a
// concurrent steal it returns false so RunqPut retries from scratch.
func (p *P) runqPutSlow(gp *G, h, t uint32) bool {
	n := (t - h) / 2
	if n != runqCapacity/2 {
		// The ring wasn't actually full — a steal raced us. Let the
		// caller retry the fast path.
		return false
	}

	batch := make([]*G, n+1)
	for i := uint32(0); i < n; i++ {
		batch[i] = p.runq[(h+i)%runqCapacity].Load()
	}
	if !p.runqhead.CompareAndSwap(h, h+n) {
		return false
	}
	batch[n] = gp

	sched.mu.Lock()
	sched.globalRunqPutBatchLocked(batch)
	sched.mu.Unlock()
	return true
}

// RunqGet dequeues a G for immediate execution (spec.md §4.1). Priority:
// run-next, with inheritTime set true (the run-next G inherits the current
// time slice rather than starting a fresh one — spec.md §4.1, preventing a
// producer from starving others via chained "next" inserts); otherwise the
// ring head, with inheritTime false. Returns (nil, false) if both are
// empty. Must be called only by p's owner.
func (p *P) RunqGet() (gp *G, inheritTime bool) {
	if next := p.runnext.Load(); next != nil {
		if p.runnext.CompareAndSwap(next, nil) {
			return next, true
		}
	}

	for {
		h := p.runqhead.Load()
		t := p.runqtail.Load()
		if t == h {
			return nil, false
		}
		g := p.runq[h%runqCapacity].Load()
		if p.runqhead.CompareAndSwap(h, h+1) {
			return g, false
		}
	}
}

// RunqEmpty reports whether p has no runnable G's queued locally. Allowed
// to be racy (a hint, per spec.md §4.1) but "never spuriously true": the
// retry loop re-validates tail so a put that races past our first read of
// runnext can't be missed.
func (p *P) RunqEmpty() bool {
	for {
		head := p.runqhead.Load()
		tail := p.runqtail.Load()
		next := p.runnext.Load()
		if tail == p.runqtail.Load() {
			return head == tail && next == nil
		}
	}
}

// RunqSteal atomically moves up to half of victim's ring (rounded up) into
// p's own ring, returning the last moved G to run immediately (spec.md
// §4.1). A ring holding a single G gives nothing up; that G stays with its
// owner. If stealNextG and nothing can be taken from victim's ring, it additionally steals
// victim's run-next slot after a brief backoff. Returns nil if victim had
// nothing to give.
func (p *P) RunqSteal(victim *P, stealNextG bool) *G {
	batch := p.runqGrab(victim, stealNextG)
	if len(batch) == 0 {
		return nil
	}
	last := len(batch) - 1
	for _, g := range batch[:last] {
		p.RunqPut(g, false)
	}
	return batch[last]
}

// runqGrab implements spec.md §4.1's RunqGrab: loads head (acquire) and
// tail (acquire), computes n = (tail-head)/2 rounded up (0 for a
// single-item ring), copies n slots into a scratch batch, then CAS-bumps
// victim's head by n. Retries the whole grab on a lost CAS, as specified.
func (p *P) runqGrab(victim *P, stealNextG bool) []*G {
	backedOff := false
	for {
		h := victim.runqhead.Load()
		t := victim.runqtail.Load()
		n := t - h
		if n == 1 {
			n = 0 // a lone G is left to its owner
		} else {
			n -= n / 2 // half, rounded up
		}
		if n == 0 {
			if !stealNextG {
				return nil
			}
			next := victim.runnext.Load()
			if next == nil {
				return nil
			}
			if victim.Status() == Prunning && !backedOff {
				// Give the owner a moment to either consume or
				// publish run-next before we take it (spec.md
				// §4.1: "after a brief backoff").
				backedOff = true
				runtime.Gosched()
				continue
			}
			if !victim.runnext.CompareAndSwap(next, nil) {
				continue
			}
			return []*G{next}
		}
		if n > runqCapacity/2 {
			// h and t were read inconsistently; retry.
			continue
		}
		batch := make([]*G, n)
		for i := uint32(0); i < n; i++ {
			batch[i] = victim.runq[(h+i)%runqCapacity].Load()
		}
		if victim.runqhead.CompareAndSwap(h, h+n) {
			return batch
		}
	}
}

// moveRunqToGlobalLocked drains p's ring and run-next slot into the global
// queue. Called when p is being retired (ResizeProc). Caller must hold
// sched.mu.
func (p *P) moveRunqToGlobalLocked() {
	if next := p.runnext.Load(); next != nil {
		p.runnext.Store(nil)
		sched.globalRunqPutLocked(next)
	}
	for {
		g, _ := p.RunqGet()
		if g == nil {
			return
		}
		sched.globalRunqPutLocked(g)
	}
}
