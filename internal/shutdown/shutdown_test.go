package shutdown

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestShutdownRunsCallbacksInOrder(t *testing.T) {
	c := New(nil, nil)

	var order []string
	c.OnShutdown(func() { order = append(order, "first") })
	c.OnShutdown(func() { order = append(order, "second") })

	c.Shutdown()

	if c.Phase() != PhaseStopped {
		t.Errorf("phase = %s", c.Phase())
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("callback order = %v", order)
	}
}

func TestShutdownDrainsPending(t *testing.T) {
	var pending atomic.Int32
	pending.Store(2)

	c := New(func() int { return int(pending.Load()) }, nil)
	c.SetGracePeriod(5 * time.Second)

	go func() {
		time.Sleep(20 * time.Millisecond)
		pending.Store(1)
		time.Sleep(20 * time.Millisecond)
		pending.Store(0)
	}()

	start := time.Now()
	c.Shutdown()
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("drain took %v, should finish once pending hits zero", elapsed)
	}
	if c.Phase() != PhaseStopped {
		t.Errorf("phase = %s", c.Phase())
	}
}

func TestShutdownGraceTimeout(t *testing.T) {
	c := New(func() int { return 1 }, nil) // never drains
	c.SetGracePeriod(50 * time.Millisecond)

	done := false
	c.OnShutdown(func() { done = true })

	c.Shutdown()
	if !done {
		t.Error("callbacks must run even when the grace period expires")
	}
}

func TestIsShuttingDownFlips(t *testing.T) {
	c := New(nil, nil)
	if c.IsShuttingDown() {
		t.Error("fresh coordinator should be running")
	}
	c.Shutdown()
	if !c.IsShuttingDown() {
		t.Error("stopped coordinator should report shutting down")
	}
}

func TestRepeatedShutdownIsNoop(t *testing.T) {
	c := New(nil, nil)
	var calls int
	c.OnShutdown(func() { calls++ })

	c.Shutdown()
	c.Shutdown()
	if calls != 1 {
		t.Errorf("callbacks ran %d times", calls)
	}
}

func TestCallbackPanicIsContained(t *testing.T) {
	c := New(nil, nil)
	var after bool
	c.OnShutdown(func() { panic("boom") })
	c.OnShutdown(func() { after = true })

	c.Shutdown()
	if !after {
		t.Error("a panicking callback must not stop the rest")
	}
}

func TestStatusReporting(t *testing.T) {
	c := New(func() int { return 3 }, nil)
	st := c.Status()
	if st.IsShuttingDown || st.Phase != PhaseRunning {
		t.Errorf("status = %+v", st)
	}
	if st.PendingRequests != 3 {
		t.Errorf("pending = %d", st.PendingRequests)
	}
	if st.RemainingGrace != DefaultGracePeriod.Seconds() {
		t.Errorf("remaining = %f", st.RemainingGrace)
	}
}
