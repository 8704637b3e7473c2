// Package stats keeps the rolling 24-hour translation statistics as
// per-minute buckets keyed by UTC minute. An optional snapshot store
// mirrors buckets so the window survives a restart.
package stats

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// minuteKeyLayout makes bucket keys lexicographically sortable.
const minuteKeyLayout = "200601021504"

// hourKeyLen folds a minute key into its hour prefix (YYYYMMDDHH).
const hourKeyLen = 10

// windowSize is the sliding window covered by the counters.
const windowSize = 24 * time.Hour

// Bucket is one minute's counters.
type Bucket struct {
	Total       int   `json:"total"`
	Success     int   `json:"success"`
	TotalTimeMS int64 `json:"total_time_ms"`
}

// SnapshotStore persists minute buckets outside the process. Implementations
// must tolerate concurrent Save calls.
type SnapshotStore interface {
	Save(ctx context.Context, key string, b Bucket) error
	Load(ctx context.Context) (map[string]Bucket, error)
}

// Window is the sliding 24h statistics accumulator. Safe for concurrent
// use; it guards its own state with its own lock and never calls into any
// other locked component.
type Window struct {
	mu      sync.Mutex
	buckets map[string]Bucket
	store   SnapshotStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewWindow creates a Window. store may be nil for memory-only statistics;
// when set, previously saved buckets are warm-loaded best-effort.
func NewWindow(store SnapshotStore, logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Window{
		buckets: make(map[string]Bucket),
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if loaded, err := store.Load(ctx); err != nil {
			logger.Warn("stats snapshot load failed, starting empty", "err", err)
		} else {
			for k, b := range loaded {
				w.buckets[k] = b
			}
			w.evictLocked(w.now())
		}
	}
	return w
}

func minuteKey(t time.Time) string { return t.UTC().Format(minuteKeyLayout) }

// Record counts one completed call: exactly one record per completion,
// success xor failure. Buckets older than the window are evicted on every
// write.
func (w *Window) Record(success bool, elapsed time.Duration) {
	now := w.now()
	key := minuteKey(now)

	w.mu.Lock()
	b := w.buckets[key]
	b.Total++
	if success {
		b.Success++
	}
	b.TotalTimeMS += elapsed.Milliseconds()
	w.buckets[key] = b
	w.evictLocked(now)
	w.mu.Unlock()

	if w.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := w.store.Save(ctx, key, b); err != nil {
			w.logger.Warn("stats snapshot save failed", "key", key, "err", err)
		}
	}
}

func (w *Window) evictLocked(now time.Time) {
	cutoff := minuteKey(now.Add(-windowSize))
	for k := range w.buckets {
		if k < cutoff {
			delete(w.buckets, k)
		}
	}
}

// Summary is the aggregate view over the window.
type Summary struct {
	PeriodStart         time.Time `json:"-"`
	PeriodEnd           time.Time `json:"-"`
	TotalRequests       int       `json:"total_requests"`
	SuccessfulRequests  int       `json:"successful_requests"`
	FailedRequests      int       `json:"failed_requests"`
	SuccessRate         float64   `json:"success_rate"`
	AvgProcessingTimeMS float64   `json:"average_processing_time_ms"`
}

// Summary aggregates the buckets inside the window. Rates and means carry
// two decimals.
func (w *Window) Summary() Summary {
	now := w.now()
	cutoff := minuteKey(now.Add(-windowSize))

	w.mu.Lock()
	var total, success int
	var totalMS int64
	for k, b := range w.buckets {
		if k >= cutoff {
			total += b.Total
			success += b.Success
			totalMS += b.TotalTimeMS
		}
	}
	w.mu.Unlock()

	s := Summary{
		PeriodStart:        now.Add(-windowSize),
		PeriodEnd:          now,
		TotalRequests:      total,
		SuccessfulRequests: success,
		FailedRequests:     total - success,
	}
	if total > 0 {
		s.SuccessRate = round2(float64(success) / float64(total) * 100)
		s.AvgProcessingTimeMS = round2(float64(totalMS) / float64(total))
	}
	return s
}

// HourRow is one row of the hourly breakdown.
type HourRow struct {
	Hour                string  `json:"hour"`
	Requests            int     `json:"requests"`
	SuccessRate         float64 `json:"success_rate"`
	AvgProcessingTimeMS float64 `json:"avg_processing_time_ms"`
}

// HourlyBreakdown folds minute buckets into hour rows, newest first, at
// most the last 24 hours.
func (w *Window) HourlyBreakdown() []HourRow {
	type agg struct {
		total   int
		success int
		totalMS int64
	}

	cutoff := minuteKey(w.now().Add(-windowSize))

	w.mu.Lock()
	hours := make(map[string]agg)
	for k, b := range w.buckets {
		if len(k) < hourKeyLen || k < cutoff {
			continue
		}
		hk := k[:hourKeyLen]
		a := hours[hk]
		a.total += b.Total
		a.success += b.Success
		a.totalMS += b.TotalTimeMS
		hours[hk] = a
	}
	w.mu.Unlock()

	keys := make([]string, 0, len(hours))
	for k := range hours {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > 24 {
		keys = keys[:24]
	}

	rows := make([]HourRow, 0, len(keys))
	for _, hk := range keys {
		t, err := time.Parse("2006010215", hk)
		if err != nil {
			continue
		}
		a := hours[hk]
		row := HourRow{
			Hour:     t.UTC().Format(time.RFC3339),
			Requests: a.total,
		}
		if a.total > 0 {
			row.SuccessRate = round2(float64(a.success) / float64(a.total) * 100)
			row.AvgProcessingTimeMS = round2(float64(a.totalMS) / float64(a.total))
		}
		rows = append(rows, row)
	}
	return rows
}

// Reset drops every bucket. Tests use it.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buckets = make(map[string]Bucket)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
