package trackedquery

import (
	"testing"

	"github.com/nodetree/syncdb/pkg/cachepolicy"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	saved map[int64]TrackedQuery
	keys  map[int64][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[int64]TrackedQuery), keys: make(map[int64][]string)}
}

func (s *fakeStore) LoadAll() ([]TrackedQuery, error) {
	out := make([]TrackedQuery, 0, len(s.saved))
	for _, tq := range s.saved {
		out = append(out, tq)
	}
	return out, nil
}

func (s *fakeStore) Save(tq TrackedQuery) error {
	s.saved[tq.ID] = tq
	return nil
}

func (s *fakeStore) Delete(id int64) error {
	delete(s.saved, id)
	delete(s.keys, id)
	return nil
}

func (s *fakeStore) SaveKeys(id int64, keys []string) error {
	s.keys[id] = keys
	return nil
}

func (s *fakeStore) LoadKeys(id int64) ([]string, error) {
	return s.keys[id], nil
}

func TestSetActiveCreatesEntry(t *testing.T) {
	store := newFakeStore()
	m, err := Load(store, 0)
	require.NoError(t, err)

	q := query.New(pathkey.New("a"))
	require.NoError(t, m.SetActive(q, 100))

	tq, ok := m.Find(q)
	require.True(t, ok)
	assert.True(t, tq.Active)
	assert.Equal(t, int64(100), tq.LastUse)
}

func TestLoadFlipsStaleActiveToInactive(t *testing.T) {
	store := newFakeStore()
	store.saved[1] = TrackedQuery{ID: 1, Query: query.New(pathkey.New("a")), Active: true, LastUse: 5}

	m, err := Load(store, 999)
	require.NoError(t, err)

	tq, ok := m.Find(query.New(pathkey.New("a")))
	require.True(t, ok)
	assert.False(t, tq.Active)
	assert.Equal(t, int64(999), tq.LastUse)
	assert.False(t, store.saved[1].Active)
}

func TestActiveInactiveCounts(t *testing.T) {
	store := newFakeStore()
	m, err := Load(store, 0)
	require.NoError(t, err)

	require.NoError(t, m.SetActive(query.New(pathkey.New("a")), 1))
	require.NoError(t, m.SetActive(query.New(pathkey.New("b")), 1))
	require.NoError(t, m.SetInactive(query.New(pathkey.New("b")), 1))

	active, inactive := m.ActiveInactiveCounts()
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, inactive)
}

func TestHasActiveDefaultChecksAncestors(t *testing.T) {
	store := newFakeStore()
	m, err := Load(store, 0)
	require.NoError(t, err)

	require.NoError(t, m.SetActive(query.New(pathkey.New("a")), 1))
	assert.True(t, m.HasActiveDefault(pathkey.New("a/b/c")))
	assert.False(t, m.HasActiveDefault(pathkey.New("other")))
}

func TestIsCompleteViaAncestorDefault(t *testing.T) {
	store := newFakeStore()
	m, err := Load(store, 0)
	require.NoError(t, err)

	require.NoError(t, m.SetComplete(query.New(pathkey.New("a")), 1))
	assert.True(t, m.IsComplete(query.New(pathkey.New("a/b"))))
}

func TestKnownCompleteChildrenUnionsFilteredKeysAndDefaultChildren(t *testing.T) {
	store := newFakeStore()
	m, err := Load(store, 0)
	require.NoError(t, err)

	params := query.Params{LimitKind: query.LimitToFirst, Limit: 5}
	filtered := query.WithParams(pathkey.New("a"), params)
	require.NoError(t, m.SetComplete(filtered, 1))
	tq, _ := m.Find(filtered)
	require.NoError(t, store.SaveKeys(tq.ID, []string{"x", "y"}))

	require.NoError(t, m.SetComplete(query.New(pathkey.New("a/b")), 1))

	children, err := m.KnownCompleteChildren(pathkey.New("a"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y", "b"}, children)
}

func TestPruneOldEvictsOldestInactiveBeyondFloor(t *testing.T) {
	store := newFakeStore()
	m, err := Load(store, 0)
	require.NoError(t, err)

	policy := cachepolicy.LRU{MaxSizeBytes: 1, MaxTrackedQueries: 1, PercentPrunePerPass: 1.0, MinPrunableToRetain: 1}

	require.NoError(t, m.SetActive(query.New(pathkey.New("active")), 1))
	require.NoError(t, m.SetInactive(query.New(pathkey.New("active")), 1))
	require.NoError(t, m.SetInactive(query.New(pathkey.New("old")), 1))
	require.NoError(t, m.SetInactive(query.New(pathkey.New("older")), 0))

	forest, err := m.PruneOld(policy)
	require.NoError(t, err)
	assert.True(t, forest.PrunesAnything())
	assert.True(t, forest.ShouldPruneUnkeptDescendants(pathkey.New("older")))

	_, stillTracked := m.Find(query.New(pathkey.New("older")))
	assert.False(t, stillTracked)
}
