package sched

// The global run queue is an intrusive singly-linked FIFO over G.schedlink
// (spec.md §4.2), protected by s.mu. It's deliberately the only place that
// walks schedlink — the local ring (p.runq) never touches it.

// globalRunqPutLocked appends gp to the tail. Caller holds s.mu.
func (s *Sched) globalRunqPutLocked(gp *G) {
	gp.schedlink.Store(nil)
	if s.runqtail == nil {
		s.runqhead = gp
	} else {
		s.runqtail.schedlink.Store(gp)
	}
	s.runqtail = gp
	s.runqsize++
	gp.setStatus(Grunnable)
}

// globalRunqPutHeadLocked prepends gp — used when re-readying a just-
// preempted G so it runs again soon (spec.md §4.2). Caller holds s.mu.
func (s *Sched) globalRunqPutHeadLocked(gp *G) {
	gp.schedlink.Store(s.runqhead)
	s.runqhead = gp
	if s.runqtail == nil {
		s.runqtail = gp
	}
	s.runqsize++
	gp.setStatus(Grunnable)
}

// globalRunqPutBatchLocked splices a slice of already-disjoint G's onto the
// tail in order. Caller holds s.mu.
func (s *Sched) globalRunqPutBatchLocked(batch []*G) {
	for _, gp := range batch {
		s.globalRunqPutLocked(gp)
	}
}

// globalRunqGetLocked moves min(size/nprocs+1, max, size) G's into p's
// local ring and returns the first one (spec.md §4.2 GlobalRunqGet).
// Caller holds s.mu.
func (s *Sched) globalRunqGetLocked(p *P, max int32) *G {
	if s.runqsize == 0 {
		return nil
	}

	nprocs := int32(len(s.allp))
	if nprocs < 1 {
		nprocs = 1
	}
	n := s.runqsize/nprocs + 1
	if n > max {
		n = max
	}
	if n > s.runqsize {
		n = s.runqsize
	}
	if n < 1 {
		n = 1
	}

	gp := s.popGlobalLocked()
	n--
	for ; n > 0 && s.runqsize > 0; n-- {
		extra := s.popGlobalLocked()
		p.RunqPut(extra, false)
	}
	return gp
}

func (s *Sched) popGlobalLocked() *G {
	gp := s.runqhead
	if gp == nil {
		return nil
	}
	s.runqhead = gp.schedlink.Load()
	if s.runqhead == nil {
		s.runqtail = nil
	}
	gp.schedlink.Store(nil)
	s.runqsize--
	return gp
}

// GlobalRunqPut appends gp to the global queue (spec.md §4.2).
func (s *Sched) GlobalRunqPut(gp *G) {
	s.mu.Lock()
	s.globalRunqPutLocked(gp)
	s.mu.Unlock()
}

// GlobalRunqPutHead prepends gp to the global queue (spec.md §4.2).
func (s *Sched) GlobalRunqPutHead(gp *G) {
	s.mu.Lock()
	s.globalRunqPutHeadLocked(gp)
	s.mu.Unlock()
}

// GlobalRunqBatch splices a disjoint batch of n G's onto the global queue's
// tail (spec.md §4.2).
func (s *Sched) GlobalRunqBatch(batch []*G) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	s.globalRunqPutBatchLocked(batch)
	s.mu.Unlock()
}

// GlobalRunqGet pulls a batch sized per spec.md §4.2 into p's local ring
// and returns the first G, or nil if the global queue is empty.
func (s *Sched) GlobalRunqGet(p *P, max int32) *G {
	s.mu.Lock()
	gp := s.globalRunqGetLocked(p, max)
	s.mu.Unlock()
	return gp
}

// GlobalRunqSize returns the global-queue length, read under s.mu. The
// value can be stale by the time the caller acts on it; HandoffP and
// WakePIfNecessary use it only as a hint.
func (s *Sched) GlobalRunqSize() int32 {
	s.mu.Lock()
	n := s.runqsize
	s.mu.Unlock()
	return n
}

// InjectGList is GlobalRunqBatch followed by a wake for each newly
// available G, up to the number of idle P's (spec.md §4.2). Used for the
// network poller's return list.
func (s *Sched) InjectGList(batch []*G) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	s.globalRunqPutBatchLocked(batch)
	s.mu.Unlock()

	n := len(batch)
	if idle := int(s.nrIdleP.Load()); idle < n {
		n = idle
	}
	for i := 0; i < n; i++ {
		s.wakeupP()
	}
}
