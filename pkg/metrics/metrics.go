package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ServerCacheEstimatedBytes tracks the persisted server cache's estimated
	// on-disk size, as reported by storage.Adapter.EstimatedSize.
	ServerCacheEstimatedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncdb_server_cache_estimated_bytes",
			Help: "Estimated size in bytes of the persisted server cache",
		},
	)

	// TrackedQueriesTotal tracks how many queries the tracked-query manager
	// currently holds, split by active/inactive state.
	TrackedQueriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncdb_tracked_queries_total",
			Help: "Total number of tracked queries by state",
		},
		[]string{"state"},
	)

	// PruneCyclesTotal counts how many times the cache policy has triggered a
	// prune pass.
	PruneCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncdb_prune_cycles_total",
			Help: "Total number of cache prune cycles run",
		},
	)

	// PrunedQueriesTotal counts how many tracked queries have been evicted
	// across all prune cycles.
	PrunedQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncdb_pruned_queries_total",
			Help: "Total number of tracked queries evicted by pruning",
		},
	)
)

func init() {
	prometheus.MustRegister(ServerCacheEstimatedBytes)
	prometheus.MustRegister(TrackedQueriesTotal)
	prometheus.MustRegister(PruneCyclesTotal)
	prometheus.MustRegister(PrunedQueriesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
