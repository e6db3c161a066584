package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
	"github.com/nodetree/syncdb/pkg/trackedquery"
)

func TestTrackedQueryStoreSaveAndLoadAll(t *testing.T) {
	store := NewTrackedQueryStore(newFakeAdapter())
	tq := trackedquery.TrackedQuery{
		ID:      1,
		Query:   query.New(pathkey.New("a/b")),
		LastUse: 100,
		Active:  true,
	}
	require.NoError(t, store.Save(tq))

	all, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, tq.ID, all[0].ID)
	assert.Equal(t, tq.LastUse, all[0].LastUse)
	assert.True(t, tq.Query.Equal(all[0].Query))
	assert.True(t, tq.Query.Path.Equal(all[0].Query.Path))
}

func TestTrackedQueryStoreDeleteRemovesRecordAndKeys(t *testing.T) {
	store := NewTrackedQueryStore(newFakeAdapter())
	tq := trackedquery.TrackedQuery{ID: 3, Query: query.New(pathkey.New("a"))}
	require.NoError(t, store.Save(tq))
	require.NoError(t, store.SaveKeys(3, []string{"x", "y"}))

	require.NoError(t, store.Delete(3))

	all, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	keys, err := store.LoadKeys(3)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestTrackedQueryStoreSaveKeysReplacesSet(t *testing.T) {
	store := NewTrackedQueryStore(newFakeAdapter())
	require.NoError(t, store.SaveKeys(7, []string{"a", "b"}))
	require.NoError(t, store.SaveKeys(7, []string{"c"}))

	keys, err := store.LoadKeys(7)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, keys)
}
