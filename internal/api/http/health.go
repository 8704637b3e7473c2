package http

import (
	"net/http"
	"time"

	"github.com/example/lingoflow/internal/api/http/responders"
	"github.com/example/lingoflow/internal/provider"
)

// readyQueueHeadroom rejects readiness when the waiting list is at or
// beyond this share of its capacity.
const readyQueueHeadroom = 0.9

type checkResult struct {
	Status  string `json:"status"` // pass | warn | fail
	Message string `json:"message,omitempty"`
}

// health evaluates the component checks: api, model, queue, memory.
// Any fail → 503 unhealthy; any warn → 200 degraded; else 200 healthy.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]checkResult{
		"api": {Status: "pass"},
	}

	switch h.Manager.State() {
	case provider.StateLoaded:
		checks["model"] = checkResult{Status: "pass"}
	case provider.StateLoading:
		checks["model"] = checkResult{Status: "warn", Message: "model loading"}
	default:
		checks["model"] = checkResult{Status: "warn", Message: "model not loaded"}
	}

	qs := h.Queue.Stats()
	switch {
	case qs.MaxQueueSize > 0 && qs.Waiting >= qs.MaxQueueSize:
		checks["queue"] = checkResult{Status: "fail", Message: "queue full"}
	case qs.MaxQueueSize > 0 && float64(qs.Waiting) >= readyQueueHeadroom*float64(qs.MaxQueueSize):
		checks["queue"] = checkResult{Status: "warn", Message: "queue near capacity"}
	default:
		checks["queue"] = checkResult{Status: "pass"}
	}

	mem := h.Monitor.Memory(r.Context())
	switch {
	case mem.Available && mem.Percent >= 95:
		checks["memory"] = checkResult{Status: "fail", Message: "memory critical"}
	case mem.Available && mem.Percent >= 90:
		checks["memory"] = checkResult{Status: "warn", Message: "memory high"}
	default:
		checks["memory"] = checkResult{Status: "pass"}
	}

	status, httpStatus := "healthy", http.StatusOK
	for _, c := range checks {
		switch c.Status {
		case "fail":
			status, httpStatus = "unhealthy", http.StatusServiceUnavailable
		case "warn":
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	responders.JSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// ready gates traffic: model loaded, queue not near full, not shutting
// down.
func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	qs := h.Queue.Stats()
	queueOK := qs.MaxQueueSize == 0 || float64(qs.Waiting) < readyQueueHeadroom*float64(qs.MaxQueueSize)
	ready := h.Manager.IsLoaded() && queueOK && !h.Shutdown.IsShuttingDown()

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	responders.JSON(w, status, map[string]any{
		"ready":         ready,
		"model_loaded":  h.Manager.IsLoaded(),
		"queue_ok":      queueOK,
		"shutting_down": h.Shutdown.IsShuttingDown(),
	})
}

// live is the liveness probe: the process is alive while memory stays
// under the ceiling.
func (h *handlers) live(w http.ResponseWriter, r *http.Request) {
	ok := h.Monitor.MemoryOK(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	responders.JSON(w, status, map[string]any{"alive": ok})
}
