// Package shutdown coordinates the graceful stop sequence: new admissions
// are gated the moment a stop begins, in-flight requests get a bounded
// grace period to finish, then registered cleanup callbacks run.
package shutdown

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultGracePeriod is how long in-flight requests may take to drain
// before the process terminates anyway.
const DefaultGracePeriod = 120 * time.Second

// pollInterval is the drain polling cadence.
const pollInterval = 500 * time.Millisecond

// Phase is the coordinator state.
type Phase string

const (
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
)

// Coordinator runs the stop sequence. Safe for concurrent use.
type Coordinator struct {
	mu        sync.Mutex
	phase     Phase
	startedAt time.Time
	grace     time.Duration
	callbacks []func()
	logger    *slog.Logger

	// pending reports the current in-flight request count.
	pending func() int
}

// New creates a Coordinator. pending may be nil when there is nothing to
// drain.
func New(pending func() int, logger *slog.Logger) *Coordinator {
	if pending == nil {
		pending = func() int { return 0 }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		phase:   PhaseRunning,
		grace:   DefaultGracePeriod,
		pending: pending,
		logger:  logger,
	}
}

// OnShutdown registers a cleanup callback, run in registration order after
// the drain finishes or times out.
func (c *Coordinator) OnShutdown(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// IsShuttingDown reports whether a stop has begun.
func (c *Coordinator) IsShuttingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != PhaseRunning
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Status is the machine-readable coordinator state.
type Status struct {
	Phase           Phase   `json:"phase"`
	IsShuttingDown  bool    `json:"is_shutting_down"`
	PendingRequests int     `json:"pending_requests"`
	RemainingGrace  float64 `json:"remaining_timeout"`
}

// Status reports the stop progress.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	phase := c.phase
	started := c.startedAt
	grace := c.grace
	c.mu.Unlock()

	remaining := grace.Seconds()
	if !started.IsZero() {
		remaining = max(0, (grace - time.Since(started)).Seconds())
	}
	return Status{
		Phase:           phase,
		IsShuttingDown:  phase != PhaseRunning,
		PendingRequests: c.pending(),
		RemainingGrace:  remaining,
	}
}

// Shutdown runs the stop sequence once: gate admissions, drain within the
// grace period, run callbacks. Repeated calls are no-ops.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	if c.phase != PhaseRunning {
		c.mu.Unlock()
		c.logger.Warn("shutdown already in progress, ignoring")
		return
	}
	c.phase = PhaseStopping
	c.startedAt = time.Now()
	grace := c.grace
	c.mu.Unlock()

	c.logger.Info("graceful shutdown started",
		"grace_seconds", grace.Seconds(),
		"pending", c.pending(),
	)

	deadline := time.Now().Add(grace)
	for c.pending() > 0 {
		if time.Now().After(deadline) {
			c.logger.Warn("shutdown grace period exceeded, terminating",
				"pending", c.pending())
			break
		}
		time.Sleep(pollInterval)
	}

	c.mu.Lock()
	callbacks := make([]func(), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("shutdown callback panicked", "panic", r)
				}
			}()
			fn()
		}()
	}

	c.mu.Lock()
	c.phase = PhaseStopped
	c.mu.Unlock()
	c.logger.Info("graceful shutdown complete")
}

// SetGracePeriod overrides the drain deadline. Tests use a short one.
func (c *Coordinator) SetGracePeriod(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grace = d
}
