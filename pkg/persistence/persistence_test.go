package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodetree/syncdb/pkg/cachepolicy"
	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
	"github.com/nodetree/syncdb/pkg/trackedquery"
)

func newTestManager(t *testing.T, policy cachepolicy.Policy) *Manager {
	t.Helper()
	tqStore := NewTrackedQueryStore(newFakeAdapter())
	tqManager, err := trackedquery.Load(tqStore, time.Now().UnixNano())
	require.NoError(t, err)

	m := New(
		NewServerCacheStore(newFakeAdapter()),
		NewUserWriteStore(newFakeAdapter()),
		tqStore,
		tqManager,
		policy,
	)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerSaveAndGetUserWrites(t *testing.T) {
	m := newTestManager(t, cachepolicy.NewLRU())
	m.SaveUserOverwrite(pathkey.New("a"), node.NewLeaf("1"), 1)
	m.SaveUserOverwrite(pathkey.New("b"), node.NewLeaf("2"), 2)

	records, err := m.GetUserWrites()
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestManagerRemoveUserWriteIsObservedByGetUserWrites(t *testing.T) {
	m := newTestManager(t, cachepolicy.NewLRU())
	m.SaveUserOverwrite(pathkey.New("a"), node.NewLeaf("1"), 1)
	m.RemoveUserWrite(1)

	records, err := m.GetUserWrites()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestManagerApplyServerOverwriteThenGetServerCacheReturnsComplete(t *testing.T) {
	m := newTestManager(t, cachepolicy.NewLRU())
	q := query.New(pathkey.New("users"))
	n := node.Empty.UpdateImmediateChild("a", node.NewLeaf("1"))

	m.ApplyServerOverwrite(n, q, 1)

	result := m.GetServerCache(q)
	assert.True(t, result.FullyInitialized)
	assert.Equal(t, "1", result.Node.GetImmediateChild("a").Value())
}

func TestManagerGetServerCacheIncompleteFallsBackToKnownChildren(t *testing.T) {
	m := newTestManager(t, cachepolicy.NewLRU())
	m.ApplyServerOverwrite(node.NewLeaf("1"), query.New(pathkey.New("users/a")), 1)

	result := m.GetServerCache(query.New(pathkey.New("users")))
	assert.False(t, result.FullyInitialized)
	assert.Equal(t, "1", result.Node.GetImmediateChild("a").Value())
}

// alwaysPrunePolicy forces a prune check and eviction on every call, so the
// pruning protocol's wiring (not its numeric thresholds, covered by
// pkg/cachepolicy) can be exercised deterministically.
type alwaysPrunePolicy struct{}

func (alwaysPrunePolicy) PercentQueriesPruneAtOnce() float64 { return 1 }
func (alwaysPrunePolicy) MaxPrunableQueriesToKeep() int      { return 0 }
func (alwaysPrunePolicy) ShouldPrune(int64, int) bool        { return true }
func (alwaysPrunePolicy) ShouldCheckSize(int) bool           { return true }

func TestManagerApplyServerOverwritePrunesInactiveTrackedQueries(t *testing.T) {
	m := newTestManager(t, alwaysPrunePolicy{})
	q := query.New(pathkey.New("stale"))

	m.SetQueryActive(q, 1)
	m.SetQueryComplete(q, 1)
	m.SetQueryInactive(q, 1)
	m.ApplyServerOverwrite(node.NewLeaf("1"), q, 1)

	// Force the job queue to drain so the prune triggered by the overwrite
	// above has definitely run before we inspect state.
	_, err := m.GetUserWrites()
	require.NoError(t, err)

	result := m.GetServerCache(q)
	assert.False(t, result.FullyInitialized)
}

func TestManagerStatsReflectsPruneActivity(t *testing.T) {
	m := newTestManager(t, alwaysPrunePolicy{})
	q := query.New(pathkey.New("stale"))

	m.SetQueryActive(q, 1)
	m.SetQueryComplete(q, 1)
	m.SetQueryInactive(q, 1)
	m.ApplyServerOverwrite(node.NewLeaf("1"), q, 1)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.PruneCycles)
	assert.Equal(t, int64(1), stats.PrunedQueries)
	assert.Equal(t, 0, stats.InactiveQueries)
}

func TestManagerCloseDrainsQueuedWorkBeforeClosingStores(t *testing.T) {
	m := newTestManager(t, cachepolicy.NewLRU())
	m.SaveUserOverwrite(pathkey.New("a"), node.NewLeaf("1"), 1)
	require.NoError(t, m.Close())
}
