// Command syscalldemo exercises the syscall boundary (spec.md §4.7, §8):
// a G that enters a blocking syscall hands its P off so other work keeps
// making progress, then reclaims a P — its own if still idle, any other
// if not — on the way out.
package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/PlumpMath/tin/greenlet"
	"github.com/PlumpMath/tin/sched"
)

func main() {
	cfg := sched.Config{GOMAXPROCS: 2, Switch: greenlet.New(nil)}
	sched.Init(cfg)

	fmt.Println("=== syscall boundary demo (GOMAXPROCS=2) ===")

	var wg sync.WaitGroup
	wg.Add(4)

	sched.Submit(func(gp *sched.G) {
		defer wg.Done()
		fmt.Println("blocker: entering syscall")
		gp.EnterSyscallBlock()
		time.Sleep(20 * time.Millisecond) // stands in for a blocking OS call
		gp.ExitSyscall()
		fmt.Println("blocker: returned from syscall")
	}, "blocker")

	for i := 1; i <= 3; i++ {
		taskID := i
		sched.Submit(func(gp *sched.G) {
			defer wg.Done()
			fmt.Printf("worker %d: running while blocker is in syscall\n", taskID)
		}, fmt.Sprintf("worker-%d", taskID))
	}

	wg.Wait()
	fmt.Println("done")
}
