package sched

import "sync/atomic"

// subGetU32 decrements an atomic.Uint32 by n and returns the resulting
// value. Go's atomic.Uint32.Add takes an unsigned delta, so a decrement is
// expressed via its two's-complement representation — the same trick the
// real runtime's atomic.Xadd(&x, -1) relies on.
func subGetU32(u *atomic.Uint32, n uint32) uint32 {
	return u.Add(^(n - 1))
}

func subU32(u *atomic.Uint32, n uint32) { subGetU32(u, n) }
