package metrics

import (
	"time"

	"github.com/nodetree/syncdb/pkg/persistence"
)

// Collector polls a persistence.Manager on a fixed interval and republishes
// its Stats snapshot as Prometheus gauges/counters.
type Collector struct {
	mgr    *persistence.Manager
	stopCh chan struct{}

	lastPruneCycles   int64
	lastPrunedQueries int64
}

// NewCollector creates a new metrics collector
func NewCollector(mgr *persistence.Manager) *Collector {
	return &Collector{
		mgr:    mgr,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats := c.mgr.Stats()

	ServerCacheEstimatedBytes.Set(float64(stats.CacheSizeBytes))
	TrackedQueriesTotal.WithLabelValues("active").Set(float64(stats.ActiveQueries))
	TrackedQueriesTotal.WithLabelValues("inactive").Set(float64(stats.InactiveQueries))

	// PruneCyclesTotal/PrunedQueriesTotal are Prometheus counters, which must
	// only increase, while Stats reports cumulative lifetime totals. Publish
	// the delta since the last poll.
	if d := stats.PruneCycles - c.lastPruneCycles; d > 0 {
		PruneCyclesTotal.Add(float64(d))
	}
	c.lastPruneCycles = stats.PruneCycles

	if d := stats.PrunedQueries - c.lastPrunedQueries; d > 0 {
		PrunedQueriesTotal.Add(float64(d))
	}
	c.lastPrunedQueries = stats.PrunedQueries
}
