package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/example/lingoflow/internal/api/http/responders"
)

func (h *handlers) publicStatus(w http.ResponseWriter, r *http.Request) {
	uptime := h.Monitor.Uptime(r.Context())

	responders.JSON(w, http.StatusOK, map[string]any{
		"system": map[string]any{
			"is_running":   !h.Shutdown.IsShuttingDown(),
			"uptime":       formatUptime(uptime.AppUptimeSeconds),
			"last_updated": time.Now().UTC().Format(time.RFC3339),
		},
		"model": map[string]any{
			"status":           string(h.Manager.State()),
			"name":             h.Manager.ActiveID(),
			"execution_mode":   string(h.Manager.ExecutionMode()),
			"loading_progress": h.Manager.Progress(),
		},
		"queue": h.Queue.Stats(),
	})
}

func (h *handlers) publicStatistics(w http.ResponseWriter, r *http.Request) {
	s := h.Window.Summary()
	responders.JSON(w, http.StatusOK, map[string]any{
		"period": map[string]string{
			"start": s.PeriodStart.UTC().Format(time.RFC3339),
			"end":   s.PeriodEnd.UTC().Format(time.RFC3339),
		},
		"summary": s,
	})
}

func (h *handlers) adminStatus(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]any{
		"resources": h.Monitor.FullStatus(r.Context()),
		"model": map[string]any{
			"status":           string(h.Manager.State()),
			"name":             h.Manager.ActiveID(),
			"execution_mode":   string(h.Manager.ExecutionMode()),
			"loading_progress": h.Manager.Progress(),
			"error_message":    h.Manager.ErrorMessage(),
		},
		"queue":    h.Queue.Stats(),
		"shutdown": h.Shutdown.Status(),
	})
}

func (h *handlers) adminStatistics(w http.ResponseWriter, r *http.Request) {
	s := h.Window.Summary()
	responders.JSON(w, http.StatusOK, map[string]any{
		"period": map[string]string{
			"start": s.PeriodStart.UTC().Format(time.RFC3339),
			"end":   s.PeriodEnd.UTC().Format(time.RFC3339),
		},
		"summary":           s,
		"hourly_breakdown":  h.Window.HourlyBreakdown(),
		"queue":             h.Queue.Stats(),
	})
}

func formatUptime(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
