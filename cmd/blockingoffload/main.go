// Command blockingoffload exercises the thread-pool offload path (spec.md
// §4.8): a G that needs to resolve a hostname can't do that on a
// scheduler M (net.LookupHost has no cancellable variant), so it hands the
// lookup to threadpool.ThreadPool and parks until a worker thread resumes
// it.
package main

import (
	"fmt"
	"log"
	"sync"

	"github.com/PlumpMath/tin/greenlet"
	"github.com/PlumpMath/tin/sched"
	"github.com/PlumpMath/tin/threadpool"
)

func main() {
	pool := threadpool.New(4, log.Default())
	defer pool.Close()

	cfg := sched.Config{GOMAXPROCS: 1, Switch: greenlet.New(nil), Pool: pool}
	sched.Init(cfg)

	fmt.Println("=== blocking-offload demo ===")

	hosts := []string{"localhost", "example.invalid"}
	var wg sync.WaitGroup
	wg.Add(len(hosts))

	for _, h := range hosts {
		host := h
		sched.Submit(func(gp *sched.G) {
			defer wg.Done()
			res := threadpool.SubmitGetAddrInfoGletWork(gp, host)
			if err := gp.LastError(); err != nil {
				fmt.Printf("%s: lookup failed: %v\n", host, err)
				return
			}
			fmt.Printf("%s: resolved to %v\n", host, res.Addrs)
		}, "resolve-"+host)
	}

	wg.Wait()
	fmt.Println("done")
}
