// Command workstealing mirrors the teacher's examples/work-stealing demo
// (spec.md §8 scenario 2/4): many more G's than P's, GOMAXPROCS=2, so
// every P but the one that first drains its queue has to steal from the
// others to stay busy.
package main

import (
	"fmt"
	"sync"

	"github.com/PlumpMath/tin/greenlet"
	"github.com/PlumpMath/tin/sched"
)

func main() {
	cfg := sched.Config{GOMAXPROCS: 2, Switch: greenlet.New(nil)}
	sched.Init(cfg)

	fmt.Println("=== work-stealing demo (GOMAXPROCS=2) ===")
	fmt.Println("submitting 10 tasks across 2 P's")

	var wg sync.WaitGroup
	wg.Add(10)
	var mu sync.Mutex
	results := make(map[int]int)

	for i := 1; i <= 10; i++ {
		taskID := i
		sched.Submit(func(gp *sched.G) {
			defer wg.Done()
			result := taskID * taskID
			mu.Lock()
			results[taskID] = result
			mu.Unlock()
		}, fmt.Sprintf("task-%d", taskID))
	}

	wg.Wait()

	for i := 1; i <= 10; i++ {
		fmt.Printf("task %d: %d*%d = %d\n", i, i, i, results[i])
	}
	fmt.Println("done — actual completion order may differ from submission order")
}
