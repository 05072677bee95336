package threadpool_test

import (
	"errors"
	"testing"
	"time"

	"github.com/PlumpMath/tin/greenlet"
	"github.com/PlumpMath/tin/sched"
	"github.com/PlumpMath/tin/threadpool"
)

func TestGletWorkResumeReadiesG(t *testing.T) {
	pool := threadpool.New(2, nil)
	defer pool.Close()

	sched.Init(sched.Config{GOMAXPROCS: 1, Switch: greenlet.New(nil), Pool: pool})
	defer sched.Get().Shutdown()

	done := make(chan struct{})
	sched.Submit(func(gp *sched.G) {
		w := threadpool.NewGletWork(func() error { return nil })
		gp.SubmitGletWork(w)
		if gp.LastError() != nil {
			t.Errorf("LastError() = %v, want nil", gp.LastError())
		}
		close(done)
	}, "offloader")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for offloaded G to resume")
	}
}

func TestGletWorkFailureSurfacesLastError(t *testing.T) {
	pool := threadpool.New(2, nil)
	defer pool.Close()

	sched.Init(sched.Config{GOMAXPROCS: 1, Switch: greenlet.New(nil), Pool: pool})
	defer sched.Get().Shutdown()

	wantErr := errors.New("host not found")
	done := make(chan struct{})
	sched.Submit(func(gp *sched.G) {
		w := threadpool.NewGletWork(func() error { return wantErr })
		gp.SubmitGletWork(w)
		if !errors.Is(gp.LastError(), wantErr) {
			t.Errorf("LastError() = %v, want %v", gp.LastError(), wantErr)
		}
		close(done)
	}, "offloader")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for offloaded G to resume")
	}
}
