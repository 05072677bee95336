// Package netpoll implements sched.NetPoller, the network-readiness
// collaborator spec.md §6 leaves external to the scheduler core. The real
// Go runtime's netpoller wraps epoll/kqueue; this module's domain has no
// actual sockets to multiplex (SPEC_FULL.md Non-goals), so the Poller here
// models the same contract — "block up to blockNs waiting for events,
// return the G's each one makes runnable" — over timers registered by
// cooperative code instead of file descriptors. A blocking-DNS workload
// that wants real socket readiness would plug its own NetPoller into
// sched.Config.Poller; this one is the teacher's timer-wheel-shaped
// stand-in, grounded in the same "external glue, swappable" role the
// scheduler core expects.
package netpoll

import (
	"sync"
	"time"

	"github.com/PlumpMath/tin/sched"
)

// Poller is a timer-backed sched.NetPoller: cooperative code arms a
// deadline via Arm, parks, and NetPoll wakes whichever G's deadlines have
// elapsed within the requested window.
type Poller struct {
	mu      sync.Mutex
	armed   map[*sched.G]time.Time
	cleared map[*sched.G]struct{} // disarmed before firing
}

// New constructs an empty Poller.
func New() *Poller {
	return &Poller{
		armed:   make(map[*sched.G]time.Time),
		cleared: make(map[*sched.G]struct{}),
	}
}

// Arm registers gp to become runnable after d elapses. Pair with Park: the
// cooperative pattern is Arm then Park(nil, nil, nil), relying on NetPoll
// to Ready gp once its deadline passes (spec.md §5 "External timer wheel
// may Ready G's whose timers fire").
func (p *Poller) Arm(gp *sched.G, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cleared, gp)
	p.armed[gp] = time.Now().Add(d)
}

// Disarm cancels a pending timer before it fires. Safe to call whether or
// not gp currently has one armed.
func (p *Poller) Disarm(gp *sched.G) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.armed, gp)
	p.cleared[gp] = struct{}{}
}

// NetPoll implements sched.NetPoller (spec.md §4.3, §6): blockNs == 0
// means don't block, return whatever has already fired; a positive value
// blocks up to that long waiting for the nearest deadline, returning early
// if one fires sooner.
func (p *Poller) NetPoll(blockNs int64) ([]*sched.G, error) {
	deadline := time.Duration(blockNs)

	for {
		ready, wait := p.collectDue()
		if len(ready) > 0 || deadline <= 0 {
			return ready, nil
		}
		if wait <= 0 || wait > deadline {
			wait = deadline
		}
		time.Sleep(wait)
		deadline -= wait
	}
}

// collectDue pops every timer that has already elapsed and reports how
// long until the next one would, if any are still pending.
func (p *Poller) collectDue() ([]*sched.G, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var ready []*sched.G
	var next time.Duration = -1
	for gp, deadline := range p.armed {
		if !now.Before(deadline) {
			ready = append(ready, gp)
			delete(p.armed, gp)
			continue
		}
		if d := deadline.Sub(now); next < 0 || d < next {
			next = d
		}
	}
	return ready, next
}
