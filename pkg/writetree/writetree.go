/*
Package writetree implements WriteTree and WriteTreeRef: the layered
overlay of pending, unacknowledged user writes that SyncPoint composes atop
server data when computing event caches.

Writes are totally ordered by a monotonically increasing WriteID. A later
overwrite at a path supersedes every earlier overlay at that path and its
descendants; a merge only supersedes the specific children it names.
*/
package writetree

import (
	"fmt"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
)

// Record is one pending user write.
type Record struct {
	WriteID  int64
	Path     pathkey.Path
	IsMerge  bool
	Snap     node.Node            // set when !IsMerge
	Children map[string]node.Node // set when IsMerge
	Visible  bool
}

// WriteTree holds the ordered set of pending user writes.
type WriteTree struct {
	records []Record // ascending by WriteID
}

// New builds an empty WriteTree.
func New() *WriteTree {
	return &WriteTree{}
}

// AddOverwrite appends an overwrite record. It fails if writeID is not
// strictly greater than every existing write id.
func (t *WriteTree) AddOverwrite(path pathkey.Path, snap node.Node, writeID int64, visible bool) error {
	if err := t.checkOrder(writeID); err != nil {
		return err
	}
	t.records = append(t.records, Record{
		WriteID: writeID,
		Path:    path,
		Snap:    snap,
		Visible: visible,
	})
	return nil
}

// AddMerge appends a merge record. Merges are always visible. It fails if
// writeID is not strictly greater than every existing write id.
func (t *WriteTree) AddMerge(path pathkey.Path, children map[string]node.Node, writeID int64) error {
	if err := t.checkOrder(writeID); err != nil {
		return err
	}
	t.records = append(t.records, Record{
		WriteID:  writeID,
		Path:     path,
		IsMerge:  true,
		Children: children,
		Visible:  true,
	})
	return nil
}

func (t *WriteTree) checkOrder(writeID int64) error {
	if len(t.records) == 0 {
		return nil
	}
	last := t.records[len(t.records)-1].WriteID
	if writeID <= last {
		return fmt.Errorf("writetree: write id %d is not greater than last recorded id %d", writeID, last)
	}
	return nil
}

// GetWrite returns the record for id, if present.
func (t *WriteTree) GetWrite(id int64) (Record, bool) {
	for _, r := range t.records {
		if r.WriteID == id {
			return r, true
		}
	}
	return Record{}, false
}

// RemoveWrite removes the record for id, reporting whether any visible
// overlay anywhere in the tree changed as a result (i.e. the removed write
// existed and was visible).
func (t *WriteTree) RemoveWrite(id int64) bool {
	for i, r := range t.records {
		if r.WriteID == id {
			t.records = append(t.records[:i:i], t.records[i+1:]...)
			return r.Visible
		}
	}
	return false
}

// Records returns a copy of all pending records, ascending by WriteID.
func (t *WriteTree) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// ChildWrites returns a Ref bounded to operations at or below path.
func (t *WriteTree) ChildWrites(path pathkey.Path) Ref {
	return Ref{tree: t, path: path}
}

// Ref is a WriteTree view bounded to one path, as returned by ChildWrites
// and narrowed further by Child.
type Ref struct {
	tree       *WriteTree
	path       pathkey.Path
	excludeIDs map[int64]bool
}

// Child narrows the ref to a child path.
func (r Ref) Child(k string) Ref {
	return Ref{tree: r.tree, path: r.path.Child(k), excludeIDs: r.excludeIDs}
}

// WithExclusions returns a ref that ignores the given write ids — used by
// SyncTree.CalcCompleteEventCache's "excludeIds" parameter.
func (r Ref) WithExclusions(ids map[int64]bool) Ref {
	return Ref{tree: r.tree, path: r.path, excludeIDs: ids}
}

func (r Ref) relevant(includeHidden bool) []Record {
	var out []Record
	for _, rec := range r.tree.records {
		if r.excludeIDs != nil && r.excludeIDs[rec.WriteID] {
			continue
		}
		if !includeHidden && !rec.Visible {
			continue
		}
		if rec.Path.Contains(r.path) || r.path.Contains(rec.Path) {
			out = append(out, rec)
		}
	}
	return out
}

// CalcCompleteEventCache composes the visible writes under r onto base
// (which may be unknown, in which case hasBase is false), returning the
// resulting node and whether the result is a complete, authoritative view
// (false means there is not enough information — a write touches r's
// subtree in a way that cannot be resolved without server data we were not
// given).
func (r Ref) CalcCompleteEventCache(base node.Node, hasBase bool) (node.Node, bool) {
	result := base
	known := hasBase
	if !known {
		result = node.Empty
	}

	for _, rec := range r.relevant(false) {
		switch {
		case rec.Path.Equal(r.path):
			if rec.IsMerge {
				if !known {
					continue
				}
				result = applyMergeChildren(result, rec.Children)
			} else {
				result = rec.Snap
				known = true
			}

		case rec.Path.Contains(r.path):
			rel, _ := r.path.RelativeTo(rec.Path)
			if rec.IsMerge {
				front, ok := rel.Front()
				if !ok {
					continue
				}
				child, ok := rec.Children[front]
				if !ok {
					continue
				}
				result = node.GetAtPath(child, rel.PopFront().Components())
				known = true
			} else {
				result = node.GetAtPath(rec.Snap, rel.Components())
				known = true
			}

		case r.path.Contains(rec.Path):
			if !known {
				continue
			}
			rel, _ := rec.Path.RelativeTo(r.path)
			if rec.IsMerge {
				result = applyMergeChildrenAt(result, rel.Components(), rec.Children)
			} else {
				result = node.SetAtPath(result, rel.Components(), rec.Snap)
			}
		}
	}

	return result, known
}

// CalcCompleteEventChildren is the children-only fallback used when
// CalcCompleteEventCache cannot establish a complete base: it overlays
// visible writes directly onto the known server children, without ever
// requiring a single authoritative starting node.
func (r Ref) CalcCompleteEventChildren(baseChildren node.Node) node.Node {
	result, _ := r.CalcCompleteEventCache(baseChildren, true)
	return result
}

func applyMergeChildren(base node.Node, children map[string]node.Node) node.Node {
	result := base
	for k, v := range children {
		result = result.UpdateImmediateChild(k, v)
	}
	return result
}

func applyMergeChildrenAt(base node.Node, relPath []string, children map[string]node.Node) node.Node {
	if len(relPath) == 0 {
		return applyMergeChildren(base, children)
	}
	head := relPath[0]
	rest := relPath[1:]
	child := base.GetImmediateChild(head)
	return base.UpdateImmediateChild(head, applyMergeChildrenAt(child, rest, children))
}
