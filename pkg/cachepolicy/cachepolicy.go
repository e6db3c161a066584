/*
Package cachepolicy implements CachePolicy: the strategy interface
governing when the server cache is checked for size and how aggressively
stale tracked queries are pruned from it, plus the default LRU policy.
*/
package cachepolicy

// Policy decides when and how much of the server cache to prune.
type Policy interface {
	// PercentQueriesPruneAtOnce is the fraction of prunable queries evicted
	// in one pruning pass.
	PercentQueriesPruneAtOnce() float64

	// MaxPrunableQueriesToKeep bounds how many prunable queries one pass
	// leaves: a pass prunes every prunable query beyond this count, or the
	// PercentQueriesPruneAtOnce share if that is larger, so fewer than this
	// many can remain.
	MaxPrunableQueriesToKeep() int

	// ShouldPrune reports whether the cache should be pruned given its
	// estimated byte size and the number of currently prunable (inactive)
	// tracked queries.
	ShouldPrune(cacheSizeBytes int64, numPrunableQueries int) bool

	// ShouldCheckSize reports whether, after numServerUpdates updates since
	// the last check, the cache size should be re-examined.
	ShouldCheckSize(numServerUpdates int) bool
}

// LRU is the default CachePolicy: each pass prunes 20% of prunable queries
// or every prunable query beyond 1000, whichever is more, triggered once
// the cache exceeds MaxSizeBytes (10 MiB by default) or more than 1000
// prunable queries are tracked, checked every 1000 server updates.
type LRU struct {
	MaxSizeBytes        int64
	MaxTrackedQueries   int
	PruneCheckInterval  int
	PercentPrunePerPass float64
	MinPrunableToRetain int
}

const defaultMaxSizeBytes = 10 * 1024 * 1024

// NewLRU builds the default LRU policy: 10 MiB cache ceiling, 1000 tracked
// queries, checked every 1000 server updates, pruning per pass the larger
// of 20% of prunable queries and the excess over 1000 prunable queries.
func NewLRU() LRU {
	return LRU{
		MaxSizeBytes:        defaultMaxSizeBytes,
		MaxTrackedQueries:   1000,
		PruneCheckInterval:  1000,
		PercentPrunePerPass: 0.20,
		MinPrunableToRetain: 1000,
	}
}

func (p LRU) PercentQueriesPruneAtOnce() float64 { return p.PercentPrunePerPass }
func (p LRU) MaxPrunableQueriesToKeep() int      { return p.MinPrunableToRetain }

func (p LRU) ShouldPrune(cacheSizeBytes int64, numPrunableQueries int) bool {
	return cacheSizeBytes > p.MaxSizeBytes || numPrunableQueries > p.MaxTrackedQueries
}

func (p LRU) ShouldCheckSize(numServerUpdates int) bool {
	return numServerUpdates > p.PruneCheckInterval
}
