// Package http provides routing and handlers for the LingoFlow API.
//
// Route structure:
//
//	/api/v1/translate/                  - translation (public)
//	/api/v1/languages/, /models/, ...   - catalog and status (public)
//	/api/v1/admin/*                     - operations, IP allow-listed
//	/api/health/, /api/ready/, /api/live/ - probes
//	/metrics                            - Prometheus exposition
package http

import (
	"log/slog"
	"net/http"

	"github.com/example/lingoflow/internal/api/http/middleware"
	"github.com/example/lingoflow/internal/config"
	"github.com/example/lingoflow/internal/language"
	"github.com/example/lingoflow/internal/model"
	"github.com/example/lingoflow/internal/monitor"
	"github.com/example/lingoflow/internal/queue"
	"github.com/example/lingoflow/internal/shutdown"
	"github.com/example/lingoflow/internal/stats"
	"github.com/example/lingoflow/internal/translation"
)

// RouterConfig holds the handler dependencies.
type RouterConfig struct {
	Config   *config.Config
	Registry *language.Registry
	Service  *translation.Service
	Manager  *model.Manager
	Queue    *queue.Queue
	Window   *stats.Window
	Monitor  *monitor.Monitor
	Shutdown *shutdown.Coordinator

	// MetricsHandler serves /metrics; nil disables the endpoint.
	MetricsHandler http.Handler

	Logger *slog.Logger
}

// handlers groups the request handlers around their shared dependencies.
type handlers struct {
	RouterConfig
	sessions *sessionStore
}

// NewRouter builds the gateway's HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handlers{RouterConfig: cfg, sessions: newSessionStore()}

	allow := middleware.NewIPAllowlist(cfg.Config.AdminAllowedIPs(), cfg.Logger)

	mux := http.NewServeMux()

	// Translation.
	mux.HandleFunc("POST /api/v1/translate/{$}", h.translate)
	mux.HandleFunc("GET /api/v1/translate/{id}/status/{$}", h.translateStatus)

	// Catalog and selection.
	mux.HandleFunc("GET /api/v1/languages/{$}", h.languages)
	mux.HandleFunc("GET /api/v1/models/{$}", h.listModels)
	mux.HandleFunc("PUT /api/v1/models/selection/{$}", h.setSelection)
	mux.HandleFunc("POST /api/v1/models/switch/{$}", h.switchModel)

	// Public status surfaces.
	mux.HandleFunc("GET /api/v1/status/{$}", h.publicStatus)
	mux.HandleFunc("GET /api/v1/statistics/{$}", h.publicStatistics)
	mux.HandleFunc("GET /api/v1/model/load-progress/{$}", h.loadProgress)

	// Admin surfaces, IP allow-listed.
	mux.Handle("GET /api/v1/admin/model/load-progress/{$}", allow.GuardFunc(h.loadProgress))
	mux.Handle("POST /api/v1/admin/model/load-progress/{$}", allow.GuardFunc(h.triggerLoad))
	mux.Handle("POST /api/v1/admin/model/unload/{$}", allow.GuardFunc(h.unloadModel))
	mux.Handle("GET /api/v1/admin/status/{$}", allow.GuardFunc(h.adminStatus))
	mux.Handle("GET /api/v1/admin/statistics/{$}", allow.GuardFunc(h.adminStatistics))

	// Probes.
	mux.HandleFunc("GET /api/health/{$}", h.health)
	mux.HandleFunc("GET /api/ready/{$}", h.ready)
	mux.HandleFunc("GET /api/live/{$}", h.live)

	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	return logRequests(cfg.Logger, mux)
}

// logRequests is the outermost middleware: one structured line per call.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"ip", middleware.ClientIP(r),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
