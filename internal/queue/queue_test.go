package queue

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func TestImmediateAdmission(t *testing.T) {
	q := New(2, 2)

	adm := q.Acquire("r1")
	if adm.Decision != Admitted {
		t.Fatalf("decision = %v", adm.Decision)
	}
	if got := q.Stats(); got.Active != 1 || got.Waiting != 0 {
		t.Errorf("stats = %+v", got)
	}

	snap, ok := q.Get("r1")
	if !ok || snap.Status != StatusProcessing {
		t.Errorf("snapshot = %+v ok=%v", snap, ok)
	}
	if snap.Position != 0 {
		t.Errorf("processing item must have no position: %+v", snap)
	}
	if snap.StartedAt == nil {
		t.Error("started_at must be set on admission")
	}
}

func TestWaitingPositionsAndETA(t *testing.T) {
	q := New(1, 3)
	q.Acquire("busy")

	for i := 1; i <= 3; i++ {
		adm := q.Acquire(fmt.Sprintf("w%d", i))
		if adm.Decision != Waiting {
			t.Fatalf("w%d decision = %v", i, adm.Decision)
		}
		if adm.Position != i {
			t.Errorf("w%d position = %d", i, adm.Position)
		}
		if adm.EstimatedWait != time.Duration(i)*3*time.Second {
			t.Errorf("w%d eta = %v", i, adm.EstimatedWait)
		}
	}
}

func TestRejectionWhenFull(t *testing.T) {
	q := New(1, 1)
	q.Acquire("busy")
	q.Acquire("waiting")

	if adm := q.Acquire("overflow"); adm.Decision != Rejected {
		t.Errorf("decision = %v, want Rejected", adm.Decision)
	}
	// A rejected request leaves no trace.
	if _, ok := q.Get("overflow"); ok {
		t.Error("rejected request must not be tracked")
	}
}

func TestZeroQueueSizeRejectsImmediately(t *testing.T) {
	q := New(1, 0)
	q.Acquire("busy")
	if adm := q.Acquire("second"); adm.Decision != Rejected {
		t.Errorf("decision = %v, want Rejected with zero queue", adm.Decision)
	}
}

func TestReleasePromotesHeadAndRenumbers(t *testing.T) {
	q := New(1, 3)
	q.Acquire("busy")
	q.Acquire("w1")
	q.Acquire("w2")
	q.Acquire("w3")

	promoted := q.Release("busy")
	if promoted != "w1" {
		t.Fatalf("promoted = %s, want w1", promoted)
	}

	if snap, _ := q.Get("w1"); snap.Status != StatusProcessing {
		t.Errorf("w1 status = %s", snap.Status)
	}
	if snap, _ := q.Get("w2"); snap.Position != 1 {
		t.Errorf("w2 position = %d, want 1", snap.Position)
	}
	if snap, _ := q.Get("w3"); snap.Position != 2 {
		t.Errorf("w3 position = %d, want 2", snap.Position)
	}

	// The released request is dropped from tracking.
	if _, ok := q.Get("busy"); ok {
		t.Error("released request must be dropped")
	}
}

func TestCancelOnlyWhileQueued(t *testing.T) {
	q := New(1, 3)
	q.Acquire("busy")
	q.Acquire("w1")
	q.Acquire("w2")

	if !q.Cancel("w1") {
		t.Fatal("cancelling a queued request must succeed")
	}
	if snap, _ := q.Get("w2"); snap.Position != 1 {
		t.Errorf("w2 position after cancel = %d, want 1", snap.Position)
	}

	if q.Cancel("busy") {
		t.Error("cancelling an in-flight request must fail")
	}
	if q.Cancel("ghost") {
		t.Error("cancelling an unknown request must fail")
	}
}

func TestReleaseUnknownDoesNotOverfill(t *testing.T) {
	q := New(1, 1)
	q.Acquire("busy")
	q.Acquire("w1")

	// Releasing an unknown id frees no slot, so nobody is promoted.
	if promoted := q.Release("ghost"); promoted != "" {
		t.Errorf("promoted = %s, want none", promoted)
	}
	if got := q.Stats(); got.Active != 1 || got.Waiting != 1 {
		t.Errorf("stats = %+v", got)
	}

	q.Release("busy")
	if got := q.Stats(); got.Active != 1 || got.Waiting != 0 {
		t.Errorf("stats after real release = %+v", got)
	}
}

// TestInvariantsUnderRandomSequence drives the queue with a random
// operation mix and checks the structural invariants after every step:
// in_flight <= max_concurrent, waiting <= max_queue_size, and waiting
// positions form a contiguous 1..n.
func TestInvariantsUnderRandomSequence(t *testing.T) {
	const maxConcurrent, maxQueue = 3, 5
	rng := rand.New(rand.NewSource(42))
	q := New(maxConcurrent, maxQueue)

	var admitted, waiting []string
	next := 0

	checkInvariants := func() {
		t.Helper()
		st := q.Stats()
		if st.Active > maxConcurrent {
			t.Fatalf("in_flight %d > max_concurrent %d", st.Active, maxConcurrent)
		}
		if st.Waiting > maxQueue {
			t.Fatalf("waiting %d > max_queue_size %d", st.Waiting, maxQueue)
		}
		for i, id := range waiting {
			snap, ok := q.Get(id)
			if !ok {
				t.Fatalf("waiter %s lost", id)
			}
			if snap.Position != i+1 {
				t.Fatalf("waiter %s position = %d, want %d", id, snap.Position, i+1)
			}
		}
	}

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(3); {
		case op == 0:
			id := fmt.Sprintf("r%d", next)
			next++
			switch adm := q.Acquire(id); adm.Decision {
			case Admitted:
				admitted = append(admitted, id)
			case Waiting:
				waiting = append(waiting, id)
			}
		case op == 1 && len(admitted) > 0:
			i := rng.Intn(len(admitted))
			id := admitted[i]
			admitted = append(admitted[:i], admitted[i+1:]...)
			if promoted := q.Release(id); promoted != "" {
				if len(waiting) == 0 || waiting[0] != promoted {
					t.Fatalf("promotion order broken: got %s, head %v", promoted, waiting)
				}
				waiting = waiting[1:]
				admitted = append(admitted, promoted)
			}
		case op == 2 && len(waiting) > 0:
			i := rng.Intn(len(waiting))
			id := waiting[i]
			if !q.Cancel(id) {
				t.Fatalf("cancel of queued %s failed", id)
			}
			waiting = append(waiting[:i], waiting[i+1:]...)
		}
		checkInvariants()
	}
}

func TestClear(t *testing.T) {
	q := New(1, 2)
	q.Acquire("a")
	q.Acquire("b")
	q.Clear()

	if got := q.Stats(); got.Active != 0 || got.Waiting != 0 {
		t.Errorf("stats after clear = %+v", got)
	}
	if _, ok := q.Get("a"); ok {
		t.Error("cleared item still tracked")
	}
}
