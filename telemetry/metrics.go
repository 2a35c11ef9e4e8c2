// Package telemetry provides Prometheus metrics, correlation-id aware logging
// helpers and OpenTelemetry tracing setup.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SyncCycles      prometheus.Counter
	SyncFailures    prometheus.Counter
	AuthFailures    prometheus.Counter
	NewLiveArrivals prometheus.Counter

	// Histograms (seconds)
	SyncDuration    prometheus.Observer
	RequestDuration prometheus.Observer

	// Gauges
	LiveChannels     prometheus.Gauge
	FollowedChannels prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SyncCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "followspot_sync_cycles_total", Help: "Number of reconciliation cycles started"})
		SyncFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "followspot_sync_failures_total", Help: "Number of reconciliation cycles that failed transiently"})
		AuthFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "followspot_auth_failures_total", Help: "Number of cycles aborted by credential rejection"})
		NewLiveArrivals = promauto.NewCounter(prometheus.CounterOpts{Name: "followspot_new_live_arrivals_total", Help: "Number of new-live-arrival signals raised"})
		SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "followspot_sync_duration_seconds", Help: "Reconciliation cycle duration seconds", Buckets: prometheus.DefBuckets})
		RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "followspot_http_request_duration_seconds", Help: "HTTP handler duration seconds", Buckets: prometheus.DefBuckets})
		LiveChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "followspot_live_channels", Help: "Live channels in the current snapshot"})
		FollowedChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "followspot_followed_channels", Help: "Followed channels in the current snapshot"})
	})
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
