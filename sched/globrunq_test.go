package sched

import "testing"

func withTestSched(t *testing.T, nprocs int32) *Sched {
	t.Helper()
	s := &Sched{}
	for i := int32(0); i < nprocs; i++ {
		s.allp = append(s.allp, newP(i))
	}
	old := sched
	sched = s
	t.Cleanup(func() { sched = old })
	return s
}

func TestGlobalRunqPutGetRoundTrip(t *testing.T) {
	withTestSched(t, 1)
	p := sched.allp[0]
	g := newTestG("g")

	sched.GlobalRunqPut(g)
	got := sched.GlobalRunqGet(p, 1)
	if got != g {
		t.Fatalf("GlobalRunqGet() = %v, want %v", got, g)
	}
	if sched.GlobalRunqSize() != 0 {
		t.Fatalf("GlobalRunqSize() = %d, want 0", sched.GlobalRunqSize())
	}
}

func TestGlobalRunqGetBatchesIntoLocalRing(t *testing.T) {
	withTestSched(t, 1)
	p := sched.allp[0]

	const n = 10
	gs := make([]*G, n)
	for i := range gs {
		gs[i] = newTestG("g")
		sched.GlobalRunqPut(gs[i])
	}

	first := sched.GlobalRunqGet(p, 32)
	if first != gs[0] {
		t.Fatalf("GlobalRunqGet() first = %v, want %v", first, gs[0])
	}
	// With one P, GlobalRunqGet's batch size is min(runqsize/nprocs+1, 32,
	// runqsize) = min(n+1, 32, n) = n, so the remaining n-1 should now be
	// sitting in p's local ring.
	remaining := 0
	for {
		g, _ := p.RunqGet()
		if g == nil {
			break
		}
		remaining++
	}
	if remaining != n-1 {
		t.Fatalf("local ring got %d G's, want %d", remaining, n-1)
	}
}

// Test61TickFairness covers §8's literal scenario 6: with a non-empty
// global queue and plenty of local work, the 61st local dispatch must come
// from the global queue.
func Test61TickFairness(t *testing.T) {
	withTestSched(t, 1)
	p := sched.allp[0]

	globalG := newTestG("global")
	sched.GlobalRunqPut(globalG)

	for i := 0; i < 100; i++ {
		p.RunqPut(newTestG("local"), false)
	}

	m := newM(1)
	m.setP(p)
	p.setBoundM(m)

	var last *G
	for i := 0; i < 61; i++ {
		gp, _ := m.FindRunnable()
		if gp == nil {
			t.Fatalf("FindRunnable() returned nil on dispatch %d", i+1)
		}
		last = gp
		p.schedTick++
	}
	if last != globalG {
		t.Fatalf("61st dispatch = %v, want the global G %v", last, globalG)
	}
}
