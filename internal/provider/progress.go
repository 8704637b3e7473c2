package provider

import (
	"sync"
	"time"
)

// progressTracker holds the externally visible loading progress. The real
// checkpoints are written by the loader; a smoother may advance the value
// in between so a long blocking step does not look stalled.
type progressTracker struct {
	mu      sync.Mutex
	value   float64
	message string
	cb      func(pct float64, message string)
}

func (t *progressTracker) set(v float64, message string) {
	t.mu.Lock()
	t.value = v
	t.message = message
	cb := t.cb
	t.mu.Unlock()

	if cb != nil {
		cb(v, message)
	}
}

func (t *progressTracker) get() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

func (t *progressTracker) setCallback(cb func(float64, string)) {
	t.mu.Lock()
	t.cb = cb
	t.mu.Unlock()
}

// smoother is the cooperative background task that nudges the reported
// progress forward while a blocking load step runs. Stop blocks until the
// goroutine has exited, so the next real checkpoint is always written after
// the smoother's last increment — the checkpoint wins.
type smoother struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// startSmoother advances t by one percent per interval, starting above
// start and staying strictly below limit.
func startSmoother(t *progressTracker, start, limit float64, message string, interval time.Duration) *smoother {
	s := &smoother{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		current := start
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if current+1 >= limit {
					return
				}
				current++
				t.set(current, message)
			}
		}
	}()

	return s
}

// Stop signals the smoother and waits for it to exit. Safe to call more
// than once.
func (s *smoother) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
