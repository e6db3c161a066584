package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
)

func TestUserWriteStoreSaveOverwriteAndLoadAll(t *testing.T) {
	store := NewUserWriteStore(newFakeAdapter())
	require.NoError(t, store.SaveOverwrite(pathkey.New("a"), node.NewLeaf("1"), 1))
	require.NoError(t, store.SaveOverwrite(pathkey.New("b"), node.NewLeaf("2"), 2))

	records, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)
	assert.False(t, records[0].IsMerge())
}

func TestUserWriteStoreSaveMergeRecordsChildren(t *testing.T) {
	store := NewUserWriteStore(newFakeAdapter())
	require.NoError(t, store.SaveMerge(pathkey.New("a"), map[string]node.Node{
		"x": node.NewLeaf("1"),
	}, 5))

	records, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsMerge())
	assert.Equal(t, "1", records[0].Children["x"])
}

func TestUserWriteStoreRemoveDeletesRecord(t *testing.T) {
	store := NewUserWriteStore(newFakeAdapter())
	require.NoError(t, store.SaveOverwrite(pathkey.New("a"), node.NewLeaf("1"), 1))
	require.NoError(t, store.Remove(1))

	records, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUserWriteStoreLoadAllSortsByID(t *testing.T) {
	store := NewUserWriteStore(newFakeAdapter())
	require.NoError(t, store.SaveOverwrite(pathkey.New("a"), node.NewLeaf("1"), 9))
	require.NoError(t, store.SaveOverwrite(pathkey.New("a"), node.NewLeaf("1"), 2))
	require.NoError(t, store.SaveOverwrite(pathkey.New("a"), node.NewLeaf("1"), 5))

	records, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int64{2, 5, 9}, []int64{records[0].ID, records[1].ID, records[2].ID})
}
