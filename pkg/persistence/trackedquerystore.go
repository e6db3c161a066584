package persistence

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nodetree/syncdb/pkg/storage"
	"github.com/nodetree/syncdb/pkg/trackedquery"
)

// TrackedQueryStore persists the tracked-query index: one key per tracked
// query ("query/"+id), plus a per-id set of completed-child names
// ("key/"+id+"/"+childName) for completed filtered queries. It implements
// trackedquery.Store.
type TrackedQueryStore struct {
	adapter storage.Adapter
}

// NewTrackedQueryStore wraps adapter as a TrackedQueryStore.
func NewTrackedQueryStore(adapter storage.Adapter) *TrackedQueryStore {
	return &TrackedQueryStore{adapter: adapter}
}

var _ trackedquery.Store = (*TrackedQueryStore)(nil)

func queryRecordKey(id int64) string {
	return "query/" + strconv.FormatInt(id, 10)
}

func keySetPrefix(id int64) string {
	return "key/" + strconv.FormatInt(id, 10) + "/"
}

// LoadAll returns every persisted tracked query.
func (s *TrackedQueryStore) LoadAll() ([]trackedquery.TrackedQuery, error) {
	entries, err := s.adapter.GetAll("query/")
	if err != nil {
		return nil, fmt.Errorf("persistence: load tracked queries: %w", err)
	}
	out := make([]trackedquery.TrackedQuery, 0, len(entries))
	for _, e := range entries {
		var tq trackedquery.TrackedQuery
		if err := json.Unmarshal(e.Value, &tq); err != nil {
			return nil, fmt.Errorf("persistence: decode tracked query %s: %w", e.Key, err)
		}
		out = append(out, tq)
	}
	return out, nil
}

// Save persists tq, replacing any prior entry for its id.
func (s *TrackedQueryStore) Save(tq trackedquery.TrackedQuery) error {
	data, err := json.Marshal(tq)
	if err != nil {
		return fmt.Errorf("persistence: encode tracked query %d: %w", tq.ID, err)
	}
	if err := s.adapter.Set(queryRecordKey(tq.ID), data); err != nil {
		return fmt.Errorf("persistence: save tracked query %d: %w", tq.ID, err)
	}
	return nil
}

// Delete removes a tracked query and its completed-key set.
func (s *TrackedQueryStore) Delete(id int64) error {
	batch := s.adapter.WriteBatch()
	batch.Remove([]string{queryRecordKey(id)})
	batch.RemovePrefixed(keySetPrefix(id))
	if err := batch.Run(); err != nil {
		return fmt.Errorf("persistence: delete tracked query %d: %w", id, err)
	}
	return nil
}

// SaveKeys replaces the completed-child-name set for a filtered tracked
// query with keys.
func (s *TrackedQueryStore) SaveKeys(id int64, keys []string) error {
	batch := s.adapter.WriteBatch()
	batch.RemovePrefixed(keySetPrefix(id))
	for _, k := range keys {
		batch.Set(keySetPrefix(id)+k, []byte(strconv.Quote(k)))
	}
	if err := batch.Run(); err != nil {
		return fmt.Errorf("persistence: save tracked keys for query %d: %w", id, err)
	}
	return nil
}

// LoadKeys returns the completed-child-name set for a filtered tracked
// query.
func (s *TrackedQueryStore) LoadKeys(id int64) ([]string, error) {
	keys, err := s.adapter.Keys(keySetPrefix(id))
	if err != nil {
		return nil, fmt.Errorf("persistence: load tracked keys for query %d: %w", id, err)
	}
	out := make([]string, 0, len(keys))
	prefix := keySetPrefix(id)
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	return out, nil
}

// Close closes the underlying store.
func (s *TrackedQueryStore) Close() error {
	return s.adapter.Close()
}
