// Package greenlet implements sched.ContextSwitcher, the low-level
// stack-switch primitive spec.md §6 leaves external to the scheduler core.
// Go has no manual stack-switching instruction, so a "stack" here is a
// dedicated goroutine per G, and SwitchTo is a synchronous handoff over a
// pair of channels: signal the target, then block until something signals
// back to the caller. Of an M's g0 and the G it dispatched, exactly one
// goroutine is runnable at a time (several M's sharing one Switcher each
// run their own G), matching the cooperative, no-preemption contract
// spec.md §5 describes for a greenlet-backed G.
package greenlet

import (
	"fmt"
	"log"
	"sync"

	"github.com/PlumpMath/tin/sched"
)

// message is what travels over a slot's channel on every switch.
type message struct {
	arg  any
	from *sched.G
}

// slot is the per-G switching state: the channel its dedicated goroutine
// (or, for g0, its g0Loop goroutine) blocks on, and the G that most
// recently switched into it — recorded so the target can switch back
// without sched having to tell it who dispatched it.
type slot struct {
	ch   chan message
	from *sched.G
}

// Switcher is the ContextSwitcher sched.Init needs (SPEC_FULL.md DOMAIN
// STACK / MODULES). One Switcher is shared by every M in a process; its
// only state is the slot map, guarded by mu.
type Switcher struct {
	mu  sync.Mutex
	log *log.Logger

	slots map[*sched.G]*slot
}

// New constructs a Switcher. A nil logger defaults to log.Default(),
// mirroring sched.Config's own convention.
func New(logger *log.Logger) *Switcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Switcher{log: logger, slots: map[*sched.G]*slot{}}
}

// slotFor returns g's slot, creating it — and, if g isn't one the caller
// already knows is alive (i.e. it has no dedicated goroutine running yet),
// spawning the goroutine that will run g.Run() the first time it's
// dispatched — on first use. g0's slot is created the same way but never
// gets a spawned goroutine: g0Loop itself is that goroutine, and it calls
// SwitchTo directly rather than waiting to be spawned.
func (sw *Switcher) slotFor(g *sched.G) *slot {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	st, ok := sw.slots[g]
	if ok {
		return st
	}
	st = &slot{ch: make(chan message)}
	sw.slots[g] = st
	if g.Label != "g0" {
		go sw.run(g, st)
	}
	return st
}

// run is the dedicated goroutine a greenlet-backed G lives on for its
// entire lifetime: block for the first dispatch, execute the G's task,
// then hand control back to whoever most recently switched into it.
func (sw *Switcher) run(g *sched.G, st *slot) {
	msg := <-st.ch
	st.from = msg.from

	result := sw.runTask(g)

	sw.mu.Lock()
	target := st.from
	delete(sw.slots, g)
	sw.mu.Unlock()

	sw.Finish(g, target, result)
}

// runTask executes g.Run(), recovering a DropG unwind as normal completion
// and any other panic as a failed task whose error is recorded on g rather
// than crashing this goroutine — the rest of the process, and every other
// G, has no relationship to this one beyond sharing a scheduler.
func (sw *Switcher) runTask(g *sched.G) sched.TaskDone {
	defer func() {
		if r := recover(); r != nil {
			if sched.IsDropSignal(r) {
				return
			}
			sw.log.Printf("greenlet: G%d %q panicked: %v", g.ID(), g.Label, r)
			g.SaveLastError(fmt.Errorf("greenlet: G%d %q panicked: %v", g.ID(), g.Label, r))
		}
	}()
	g.Run()
	return sched.TaskDone{}
}

// SwitchTo implements sched.ContextSwitcher: hand control to to, then
// block until something later switches back into from.
func (sw *Switcher) SwitchTo(from, to *sched.G, arg any) any {
	sw.signal(from, to, arg)
	return sw.wait(from)
}

// Finish implements sched.ContextSwitcher's non-blocking half: used only
// when the caller's goroutine is about to exit and will never be the
// target of a later switch, so there is nothing to wait for.
func (sw *Switcher) Finish(from, to *sched.G, arg any) {
	sw.signal(from, to, arg)
}

func (sw *Switcher) signal(from, to *sched.G, arg any) {
	st := sw.slotFor(to)
	sw.mu.Lock()
	st.from = from
	sw.mu.Unlock()
	st.ch <- message{arg: arg, from: from}
}

func (sw *Switcher) wait(g *sched.G) any {
	st := sw.slotFor(g)
	msg := <-st.ch
	return msg.arg
}
