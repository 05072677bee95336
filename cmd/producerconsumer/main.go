// Command producerconsumer mirrors the teacher's examples/producer-consumer
// demo, but for real: producers append to a shared queue and Ready any
// consumer parked waiting on it, instead of the teacher's unsynchronized
// shared slice (spec.md §4.5 Park/Ready).
package main

import (
	"fmt"
	"sync"

	"github.com/PlumpMath/tin/greenlet"
	"github.com/PlumpMath/tin/sched"
)

// queue is a tiny blocking queue built directly on Park/Ready: a consumer
// that finds the queue empty parks, recording itself as the waiter, and
// whichever producer next pushes a value readies it.
type queue struct {
	mu      sync.Mutex
	items   []int
	waiters []*sched.G
}

func (q *queue) push(gp *sched.G, v int) {
	q.mu.Lock()
	q.items = append(q.items, v)
	var w *sched.G
	if len(q.waiters) > 0 {
		w = q.waiters[0]
		q.waiters = q.waiters[1:]
	}
	q.mu.Unlock()
	if w != nil {
		gp.Ready(w)
	}
}

func (q *queue) pop(gp *sched.G) int {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return v
		}
		q.waiters = append(q.waiters, gp)
		gp.ParkUnlock(&q.mu)
	}
}

func main() {
	cfg := sched.Config{GOMAXPROCS: 2, Switch: greenlet.New(nil)}
	sched.Init(cfg)

	fmt.Println("=== producer-consumer demo ===")

	q := &queue{}
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 1; i <= 3; i++ {
		producerID := i
		sched.Submit(func(gp *sched.G) {
			defer wg.Done()
			value := producerID * 10
			q.push(gp, value)
			fmt.Printf("producer %d: produced %d\n", producerID, value)
		}, fmt.Sprintf("producer-%d", producerID))
	}

	for i := 1; i <= 2; i++ {
		consumerID := i
		sched.Submit(func(gp *sched.G) {
			defer wg.Done()
			v := q.pop(gp)
			fmt.Printf("consumer %d: consumed %d\n", consumerID, v)
		}, fmt.Sprintf("consumer-%d", consumerID))
	}

	wg.Wait()
	fmt.Println("all tasks finished")
}
