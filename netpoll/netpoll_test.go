package netpoll_test

import (
	"testing"
	"time"

	"github.com/PlumpMath/tin/netpoll"
	"github.com/PlumpMath/tin/sched"
)

func TestNetPollNonBlockingEmpty(t *testing.T) {
	p := netpoll.New()
	list, err := p.NetPoll(0)
	if err != nil {
		t.Fatalf("NetPoll(0) error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("NetPoll(0) on an empty poller = %v, want empty", list)
	}
}

func TestNetPollFiresArmedTimer(t *testing.T) {
	p := netpoll.New()
	g := sched.NewG(nil, "timer-g")
	p.Arm(g, 5*time.Millisecond)

	list, err := p.NetPoll(int64(200 * time.Millisecond))
	if err != nil {
		t.Fatalf("NetPoll error = %v", err)
	}
	if len(list) != 1 || list[0] != g {
		t.Fatalf("NetPoll() = %v, want [g]", list)
	}
}

func TestDisarmPreventsFiring(t *testing.T) {
	p := netpoll.New()
	g := sched.NewG(nil, "timer-g")
	p.Arm(g, 5*time.Millisecond)
	p.Disarm(g)

	list, _ := p.NetPoll(int64(20 * time.Millisecond))
	if len(list) != 0 {
		t.Fatalf("NetPoll() = %v after Disarm, want empty", list)
	}
}
