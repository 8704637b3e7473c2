package provider

import (
	"testing"
	"time"
)

func TestTrackerReportsToCallback(t *testing.T) {
	var tr progressTracker
	var got []float64
	tr.setCallback(func(pct float64, _ string) { got = append(got, pct) })

	tr.set(5, "a")
	tr.set(10, "b")

	if tr.get() != 10 {
		t.Errorf("value = %f", tr.get())
	}
	if len(got) != 2 || got[0] != 5 || got[1] != 10 {
		t.Errorf("callback values = %v", got)
	}
}

func TestSmootherAdvancesBelowLimit(t *testing.T) {
	var tr progressTracker
	tr.set(25, "start")

	sm := startSmoother(&tr, 25, 30, "loading", 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	sm.Stop()

	v := tr.get()
	if v < 26 {
		t.Errorf("smoother never advanced: %f", v)
	}
	if v >= 30 {
		t.Errorf("smoother crossed its limit: %f", v)
	}
}

func TestStopDeliversBeforeNextCheckpoint(t *testing.T) {
	// The ordering invariant: after Stop returns, the smoother goroutine
	// has exited, so a checkpoint written next can never be overwritten.
	var tr progressTracker
	tr.set(25, "start")

	sm := startSmoother(&tr, 25, 74, "loading", time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	sm.Stop()

	tr.set(75, "checkpoint")
	time.Sleep(20 * time.Millisecond)

	if got := tr.get(); got != 75 {
		t.Errorf("checkpoint overwritten by smoother: %f", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	var tr progressTracker
	sm := startSmoother(&tr, 0, 10, "x", time.Millisecond)
	sm.Stop()
	sm.Stop()
}
