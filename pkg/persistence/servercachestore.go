package persistence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/pruneforest"
	"github.com/nodetree/syncdb/pkg/storage"
)

// ServerCacheStore persists the authoritative server snapshot: one key per
// primitive leaf, keyed by its slash-joined path with a trailing slash, so
// that reading a subtree is a single prefix scan. No key is ever written
// for an interior (children-only) node.
type ServerCacheStore struct {
	adapter storage.Adapter
}

// NewServerCacheStore wraps adapter as a ServerCacheStore.
func NewServerCacheStore(adapter storage.Adapter) *ServerCacheStore {
	return &ServerCacheStore{adapter: adapter}
}

func leafKey(p pathkey.Path) string {
	if p.IsEmpty() {
		return "/"
	}
	return p.String() + "/"
}

func subtreePrefix(p pathkey.Path) string {
	if p.IsEmpty() {
		return ""
	}
	return p.String() + "/"
}

// Overwrite replaces the subtree at path with n. When partial is true, only
// n's immediate children are replaced (each one individually), leaving
// siblings of those children untouched; when false, the whole subtree at
// path is replaced.
func (s *ServerCacheStore) Overwrite(n node.Node, path pathkey.Path, partial bool) error {
	batch := s.adapter.WriteBatch()
	removeAncestorLeafKeys(batch, path)

	if partial {
		var outerErr error
		n.ForEachChild(func(key string, child node.Node) bool {
			childPath := path.Child(key)
			batch.RemovePrefixed(subtreePrefix(childPath))
			leaves := map[string][]byte{}
			if err := flattenLeaves(child, nil, leaves); err != nil {
				outerErr = err
				return false
			}
			writeLeaves(batch, childPath, leaves)
			return true
		})
		if outerErr != nil {
			return outerErr
		}
	} else {
		batch.RemovePrefixed(subtreePrefix(path))
		leaves := map[string][]byte{}
		if err := flattenLeaves(n, nil, leaves); err != nil {
			return err
		}
		writeLeaves(batch, path, leaves)
	}

	if err := batch.Run(); err != nil {
		return fmt.Errorf("persistence: overwrite server cache at %s: %w", path, err)
	}
	return nil
}

// Merge replaces the named children at path, leaving the rest of the
// subtree untouched — Overwrite restricted to a subset of children.
func (s *ServerCacheStore) Merge(children map[string]node.Node, path pathkey.Path) error {
	batch := s.adapter.WriteBatch()
	removeAncestorLeafKeys(batch, path)

	for key, child := range children {
		childPath := path.Child(key)
		batch.RemovePrefixed(subtreePrefix(childPath))
		leaves := map[string][]byte{}
		if err := flattenLeaves(child, nil, leaves); err != nil {
			return err
		}
		writeLeaves(batch, childPath, leaves)
	}

	if err := batch.Run(); err != nil {
		return fmt.Errorf("persistence: merge server cache at %s: %w", path, err)
	}
	return nil
}

// GetAtPath reassembles the node persisted at path, or node.Empty if
// nothing is stored there.
func (s *ServerCacheStore) GetAtPath(path pathkey.Path) (node.Node, error) {
	entries, err := s.adapter.GetAll(subtreePrefix(path))
	if err != nil {
		return node.Empty, fmt.Errorf("persistence: read server cache at %s: %w", path, err)
	}
	if len(entries) == 0 {
		return node.Empty, nil
	}

	leaves := make(map[string]interface{}, len(entries))
	prefix := subtreePrefix(path)
	for _, e := range entries {
		rel := strings.TrimPrefix(e.Key, prefix)
		var value interface{}
		if err := json.Unmarshal(e.Value, &value); err != nil {
			return node.Empty, fmt.Errorf("persistence: decode leaf %s: %w", e.Key, err)
		}
		leaves[rel] = value
	}
	return node.FromFlatPaths(leaves), nil
}

// GetForKeys reads path's children named in keys and assembles them into a
// single children node.
func (s *ServerCacheStore) GetForKeys(keys []string, path pathkey.Path) (node.Node, error) {
	result := node.Empty
	for _, k := range keys {
		child, err := s.GetAtPath(path.Child(k))
		if err != nil {
			return node.Empty, err
		}
		result = result.UpdateImmediateChild(k, child)
	}
	return result, nil
}

// PruneCache deletes every stored key under path whose relative path the
// forest marks for eviction, leaving keys under a kept subtree untouched.
func (s *ServerCacheStore) PruneCache(forest *pruneforest.PruneForest, path pathkey.Path) error {
	keys, err := s.adapter.Keys(subtreePrefix(path))
	if err != nil {
		return fmt.Errorf("persistence: enumerate server cache keys under %s: %w", path, err)
	}

	batch := s.adapter.WriteBatch()
	prefix := subtreePrefix(path)
	var anyRemoved bool
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		relPath := pathkey.New(rel)
		if forest.ShouldPruneUnkeptDescendants(relPath) {
			batch.Remove([]string{key})
			anyRemoved = true
		}
	}
	if !anyRemoved {
		return nil
	}
	if err := batch.Run(); err != nil {
		return fmt.Errorf("persistence: prune server cache under %s: %w", path, err)
	}
	return nil
}

// EstimatedSize returns the adapter's size estimate for the whole store.
func (s *ServerCacheStore) EstimatedSize() (int64, error) {
	size, err := s.adapter.EstimatedSize()
	if err != nil {
		return 0, fmt.Errorf("persistence: estimate server cache size: %w", err)
	}
	return size, nil
}

// Close closes the underlying store.
func (s *ServerCacheStore) Close() error {
	return s.adapter.Close()
}

// removeAncestorLeafKeys removes the leaf key at path and every one of its
// ancestors, preserving the invariant that a path never simultaneously
// holds a leaf entry and a prefixed children entry: writing anything at or
// beneath an ancestor first clears that ancestor's own leaf value.
func removeAncestorLeafKeys(batch storage.Batch, path pathkey.Path) {
	for p := path; ; p = p.Parent() {
		batch.Remove([]string{leafKey(p)})
		if p.IsEmpty() {
			return
		}
	}
}

func writeLeaves(batch storage.Batch, base pathkey.Path, leaves map[string][]byte) {
	for rel, value := range leaves {
		key := leafKey(relJoin(base, rel))
		batch.Set(key, value)
	}
}

func relJoin(base pathkey.Path, rel string) pathkey.Path {
	if rel == "" {
		return base
	}
	return base.Append(pathkey.New(rel))
}

// flattenLeaves collects every leaf under n into out, keyed by its
// slash-joined path relative to n's own root. No entry is produced for a
// childless-but-non-leaf node (EMPTY_NODE contributes nothing).
func flattenLeaves(n node.Node, relPath []string, out map[string][]byte) error {
	if n.IsLeaf() {
		data, err := json.Marshal(n.Value())
		if err != nil {
			return fmt.Errorf("persistence: encode leaf at %s: %w", strings.Join(relPath, "/"), err)
		}
		out[strings.Join(relPath, "/")] = data
		return nil
	}

	var outerErr error
	n.ForEachChild(func(key string, child node.Node) bool {
		childPath := append(append([]string{}, relPath...), key)
		if err := flattenLeaves(child, childPath, out); err != nil {
			outerErr = err
			return false
		}
		return true
	})
	return outerErr
}
