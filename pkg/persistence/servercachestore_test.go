package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/pruneforest"
)

func TestServerCacheStoreOverwriteAndGetAtPathRoundTrip(t *testing.T) {
	store := NewServerCacheStore(newFakeAdapter())
	n := node.Empty.
		UpdateImmediateChild("a", node.NewLeaf("1")).
		UpdateImmediateChild("b", node.NewLeaf(float64(2)))

	require.NoError(t, store.Overwrite(n, pathkey.New("users"), false))

	got, err := store.GetAtPath(pathkey.New("users"))
	require.NoError(t, err)
	assert.True(t, n.Equal(got))
}

func TestServerCacheStoreOverwriteRemovesAncestorLeaf(t *testing.T) {
	store := NewServerCacheStore(newFakeAdapter())
	require.NoError(t, store.Overwrite(node.NewLeaf("x"), pathkey.New("a"), false))

	child := node.Empty.UpdateImmediateChild("b", node.NewLeaf("y"))
	require.NoError(t, store.Overwrite(child, pathkey.New("a/b"), false))

	got, err := store.GetAtPath(pathkey.New("a"))
	require.NoError(t, err)
	assert.False(t, got.IsLeaf())
	assert.Equal(t, "y", got.GetImmediateChild("b").GetImmediateChild("b").Value())
}

func TestServerCacheStorePartialOverwriteLeavesSiblingsAlone(t *testing.T) {
	store := NewServerCacheStore(newFakeAdapter())
	initial := node.Empty.
		UpdateImmediateChild("a", node.NewLeaf("1")).
		UpdateImmediateChild("b", node.NewLeaf("2"))
	require.NoError(t, store.Overwrite(initial, pathkey.New("users"), false))

	update := node.Empty.UpdateImmediateChild("a", node.NewLeaf("updated"))
	require.NoError(t, store.Overwrite(update, pathkey.New("users"), true))

	got, err := store.GetAtPath(pathkey.New("users"))
	require.NoError(t, err)
	assert.Equal(t, "updated", got.GetImmediateChild("a").Value())
	assert.Equal(t, "2", got.GetImmediateChild("b").Value())
}

func TestServerCacheStoreMergeOnlyTouchesNamedChildren(t *testing.T) {
	store := NewServerCacheStore(newFakeAdapter())
	initial := node.Empty.
		UpdateImmediateChild("a", node.NewLeaf("1")).
		UpdateImmediateChild("b", node.NewLeaf("2"))
	require.NoError(t, store.Overwrite(initial, pathkey.New("users"), false))

	require.NoError(t, store.Merge(map[string]node.Node{
		"a": node.NewLeaf("3"),
	}, pathkey.New("users")))

	got, err := store.GetAtPath(pathkey.New("users"))
	require.NoError(t, err)
	assert.Equal(t, "3", got.GetImmediateChild("a").Value())
	assert.Equal(t, "2", got.GetImmediateChild("b").Value())
}

func TestServerCacheStoreGetForKeysAssemblesChildren(t *testing.T) {
	store := NewServerCacheStore(newFakeAdapter())
	require.NoError(t, store.Overwrite(node.NewLeaf("1"), pathkey.New("users/a"), false))
	require.NoError(t, store.Overwrite(node.NewLeaf("2"), pathkey.New("users/b"), false))

	got, err := store.GetForKeys([]string{"a", "b"}, pathkey.New("users"))
	require.NoError(t, err)
	assert.Equal(t, "1", got.GetImmediateChild("a").Value())
	assert.Equal(t, "2", got.GetImmediateChild("b").Value())
}

func TestServerCacheStorePruneCacheRemovesOnlyPrunedSubtrees(t *testing.T) {
	store := NewServerCacheStore(newFakeAdapter())
	require.NoError(t, store.Overwrite(node.NewLeaf("1"), pathkey.New("users/a"), false))
	require.NoError(t, store.Overwrite(node.NewLeaf("2"), pathkey.New("users/b"), false))

	forest := pruneforest.New()
	require.NoError(t, forest.MarkPrune(pathkey.New("a")))
	forest.Keep(pathkey.New("b"))

	require.NoError(t, store.PruneCache(forest, pathkey.New("users")))

	got, err := store.GetAtPath(pathkey.New("users"))
	require.NoError(t, err)
	assert.True(t, got.GetImmediateChild("a").IsEmpty())
	assert.Equal(t, "2", got.GetImmediateChild("b").Value())
}
