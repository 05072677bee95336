package sched

import "time"

// processStart anchors MonotonicMillis (spec.md §6) without pulling in a
// monotonic-clock library the corpus never shows one — time.Since against
// a fixed start is the same trick time.Now().Sub always uses internally.
var processStart = time.Now()

// nowMillis is the default Config.Clock: milliseconds since process start,
// truncated to fit the spec's uint32 last_poll field. Wraps after ~49 days
// of uptime, which only ever affects the "is a poll in flight" heuristic,
// never correctness of the run queues.
func nowMillis() uint32 {
	ms := time.Since(processStart).Milliseconds()
	return uint32(ms)
}
