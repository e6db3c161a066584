package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/storage"
)

// UserWriteRecord is the persisted form of one pending local write: an
// overwrite carries Snap, a merge carries Children, never both.
type UserWriteRecord struct {
	ID       int64                  `json:"id"`
	Path     string                 `json:"path"`
	Snap     interface{}            `json:"overwrite,omitempty"`
	Children map[string]interface{} `json:"merge,omitempty"`
}

// IsMerge reports whether the record represents a merge rather than an
// overwrite.
func (r UserWriteRecord) IsMerge() bool {
	return r.Children != nil
}

// UserWriteStore persists pending user writes keyed by their decimal write
// id, so that an unclean shutdown can be recovered by replaying every
// record still present at startup.
type UserWriteStore struct {
	adapter storage.Adapter
}

// NewUserWriteStore wraps adapter as a UserWriteStore.
func NewUserWriteStore(adapter storage.Adapter) *UserWriteStore {
	return &UserWriteStore{adapter: adapter}
}

func writeKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// SaveOverwrite persists a pending overwrite write.
func (s *UserWriteStore) SaveOverwrite(path pathkey.Path, n node.Node, writeID int64) error {
	return s.save(UserWriteRecord{ID: writeID, Path: path.String(), Snap: n.Export()})
}

// SaveMerge persists a pending merge write.
func (s *UserWriteStore) SaveMerge(path pathkey.Path, children map[string]node.Node, writeID int64) error {
	exported := make(map[string]interface{}, len(children))
	for k, v := range children {
		exported[k] = v.Export()
	}
	return s.save(UserWriteRecord{ID: writeID, Path: path.String(), Children: exported})
}

func (s *UserWriteStore) save(r UserWriteRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("persistence: encode user write %d: %w", r.ID, err)
	}
	if err := s.adapter.Set(writeKey(r.ID), data); err != nil {
		return fmt.Errorf("persistence: save user write %d: %w", r.ID, err)
	}
	return nil
}

// Remove deletes the persisted write with the given id.
func (s *UserWriteStore) Remove(writeID int64) error {
	if err := s.adapter.Set(writeKey(writeID), nil); err != nil {
		return fmt.Errorf("persistence: remove user write %d: %w", writeID, err)
	}
	return nil
}

// LoadAll returns every persisted write, sorted by id ascending.
func (s *UserWriteStore) LoadAll() ([]UserWriteRecord, error) {
	entries, err := s.adapter.GetAll("")
	if err != nil {
		return nil, fmt.Errorf("persistence: load user writes: %w", err)
	}
	records := make([]UserWriteRecord, 0, len(entries))
	for _, e := range entries {
		var r UserWriteRecord
		if err := json.Unmarshal(e.Value, &r); err != nil {
			return nil, fmt.Errorf("persistence: decode user write %s: %w", e.Key, err)
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Close closes the underlying store.
func (s *UserWriteStore) Close() error {
	return s.adapter.Close()
}
