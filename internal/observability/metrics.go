// Package observability exposes the gateway's Prometheus metrics: request
// outcomes, generation latency, queue occupancy and model load progress.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the gateway registers. All fields are safe
// for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	TranslationsTotal   *prometheus.CounterVec
	TranslationDuration prometheus.Histogram
	QueueActive         prometheus.GaugeFunc
	QueueWaiting        prometheus.GaugeFunc
	ModelLoadProgress   prometheus.GaugeFunc
}

// New registers the gateway collectors plus the standard Go and process
// collectors on a fresh registry.
func New(queueActive, queueWaiting func() int, loadProgress func() float64) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		TranslationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lingoflow_translations_total",
			Help: "Completed translation calls by terminal status.",
		}, []string{"status"}),
		TranslationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lingoflow_translation_duration_seconds",
			Help:    "Wall-clock translation latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		QueueActive: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lingoflow_queue_active_requests",
			Help: "Requests currently holding an in-flight slot.",
		}, func() float64 { return float64(queueActive()) }),
		QueueWaiting: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lingoflow_queue_waiting_requests",
			Help: "Requests waiting for an in-flight slot.",
		}, func() float64 { return float64(queueWaiting()) }),
		ModelLoadProgress: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lingoflow_model_load_progress",
			Help: "Active provider load progress, 0-100.",
		}, loadProgress),
	}

	reg.MustRegister(
		m.TranslationsTotal,
		m.TranslationDuration,
		m.QueueActive,
		m.QueueWaiting,
		m.ModelLoadProgress,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTranslation records one completed translation call.
func (m *Metrics) ObserveTranslation(status string, seconds float64) {
	m.TranslationsTotal.WithLabelValues(status).Inc()
	m.TranslationDuration.Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
