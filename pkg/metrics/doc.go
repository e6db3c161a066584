/*
Package metrics provides Prometheus metrics collection and exposition, plus
health/readiness/liveness HTTP handlers, for the sync engine.

The metrics package defines and registers all sync engine metrics using the
Prometheus client library, providing observability into the persisted server
cache's size and the tracked-query cache's pruning behavior. Metrics are
exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Collector                      │          │
	│  │  - Polls persistence.Manager.Stats() on a   │          │
	│  │    ticker (15s)                             │          │
	│  │  - Publishes gauges directly                │          │
	│  │  - Publishes counters as deltas since the   │          │
	│  │    last poll                                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition        │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

syncdb_server_cache_estimated_bytes:
  - Type: Gauge
  - Description: Estimated size in bytes of the persisted server cache
  - Example: syncdb_server_cache_estimated_bytes 1048576

syncdb_tracked_queries_total{state}:
  - Type: Gauge
  - Description: Total tracked queries by state (active/inactive)
  - Labels: state
  - Example: syncdb_tracked_queries_total{state="active"} 12

syncdb_prune_cycles_total:
  - Type: Counter
  - Description: Total number of cache prune cycles run
  - Example: syncdb_prune_cycles_total 4

syncdb_pruned_queries_total:
  - Type: Counter
  - Description: Total number of tracked queries evicted by pruning
  - Example: syncdb_pruned_queries_total 37

# Usage

	import "github.com/nodetree/syncdb/pkg/metrics"

	collector := metrics.NewCollector(mgr)
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
	http.HandleFunc("/live", metrics.LivenessHandler())

Timer Helper:

	timer := metrics.NewTimer()
	// ... perform operation ...
	elapsed := timer.Duration()

# Health and Readiness

RegisterComponent/UpdateComponent track named components ("persistence",
"listener") and feed both /health (any unhealthy component reports overall
"unhealthy") and /ready ("persistence" and "listener" are the critical
components; missing or unhealthy critical components report "not_ready").
/live always reports "alive" while the process is running.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
