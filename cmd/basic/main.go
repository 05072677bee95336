// Command basic mirrors the teacher's examples/basic demo (spec.md §6
// Init/Submit): a handful of independent G's on a single P.
package main

import (
	"fmt"
	"sync"

	"github.com/PlumpMath/tin/greenlet"
	"github.com/PlumpMath/tin/sched"
)

func main() {
	cfg := sched.Config{GOMAXPROCS: 1, Switch: greenlet.New(nil)}
	cfg.EnvOverride()
	sched.Init(cfg)

	fmt.Println("=== scheduler demo ===")

	var wg sync.WaitGroup
	wg.Add(3)

	sched.Submit(func(gp *sched.G) {
		defer wg.Done()
		fmt.Println("G1: hello from G1")
	}, "g1")

	sched.Submit(func(gp *sched.G) {
		defer wg.Done()
		fmt.Println("G2: hello from G2")
	}, "g2")

	sched.Submit(func(gp *sched.G) {
		defer wg.Done()
		sum := 0
		for i := 1; i <= 10; i++ {
			sum += i
		}
		fmt.Printf("G3: sum of 1-10 = %d\n", sum)
	}, "g3")

	wg.Wait()
	fmt.Println("all G's finished")
}
