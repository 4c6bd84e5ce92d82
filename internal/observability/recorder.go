// Package observability exports flockcore activity as prometheus metrics.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flockcore/internal/core"
	"flockcore/pkg/domain"
)

const namespace = "flockcore"

// Recorder implements core.MetricsRecorder and the sync recorder on a
// dedicated registry.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	syncs      *prometheus.CounterVec
	records    *prometheus.GaugeVec
}

// NewRecorder registers the flockcore collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_total",
			Help:      "Remote sync attempts by direction and outcome.",
		}, []string{"direction", "outcome"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Records held per collection in the committed snapshot.",
		}, []string{"collection"}),
	}
	r.registry.MustRegister(r.operations, r.durations, r.syncs, r.records)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe records a service operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveSync counts one push or pull.
func (r *Recorder) ObserveSync(direction, outcome string) {
	r.syncs.WithLabelValues(direction, outcome).Inc()
}

// ObserveSnapshot sets the per-collection record gauges.
func (r *Recorder) ObserveSnapshot(snap domain.Snapshot) {
	for _, c := range domain.Collections {
		r.records.WithLabelValues(string(c)).Set(float64(snap.Len(c)))
	}
}

// Track seeds the record gauges from the store and keeps them current. The
// returned func stops tracking.
func (r *Recorder) Track(store *core.Store) func() {
	r.ObserveSnapshot(store.Snapshot())
	return store.Subscribe(func(ch core.Change) { r.ObserveSnapshot(ch.Snapshot) })
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
