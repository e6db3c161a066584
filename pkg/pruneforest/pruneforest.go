/*
Package pruneforest implements PruneForest: a sparse tree recording, at
each path, whether the server cache subtree rooted there should be kept or
pruned during LRU eviction.
*/
package pruneforest

import (
	"fmt"

	"github.com/nodetree/syncdb/pkg/pathkey"
)

// Mark is the disposition recorded at a PruneForest node.
type Mark int

const (
	// Unset means no disposition is recorded at this exact path; the
	// effective disposition is inherited from the nearest marked ancestor.
	Unset Mark = iota
	// Keep marks a subtree that must survive pruning.
	Keep
	// Prune marks a subtree eligible for eviction.
	Prune
)

type entry struct {
	path pathkey.Path
	mark Mark
}

// PruneForest is a flat set of (path, mark) entries; disposition lookups
// walk for the longest-matching marked ancestor (the "leaf-most" set value
// on the path, per its definition).
type PruneForest struct {
	entries []entry
}

// New builds an empty PruneForest: every path is implicitly Unset.
func New() *PruneForest {
	return &PruneForest{}
}

// Keep marks path (and, absent a more specific mark beneath it, its
// descendants) as kept.
func (f *PruneForest) Keep(path pathkey.Path) {
	f.set(path, Keep)
}

// MarkPrune marks path as prune. It fails if path lies under any kept
// subtree — a prune can never reach inside a keep.
func (f *PruneForest) MarkPrune(path pathkey.Path) error {
	if f.shouldKeep(path) {
		return fmt.Errorf("pruneforest: cannot prune %s: lies under a kept subtree", path)
	}
	f.set(path, Prune)
	return nil
}

func (f *PruneForest) set(path pathkey.Path, mark Mark) {
	for i, e := range f.entries {
		if e.path.Equal(path) {
			f.entries[i].mark = mark
			return
		}
	}
	f.entries = append(f.entries, entry{path: path, mark: mark})
}

func (f *PruneForest) shouldKeep(path pathkey.Path) bool {
	mark, ok := f.leafMostMark(path)
	return ok && mark == Keep
}

// leafMostMark returns the mark of the deepest ancestor of (or equal to)
// path that carries an explicit mark.
func (f *PruneForest) leafMostMark(path pathkey.Path) (Mark, bool) {
	best := -1
	var bestMark Mark
	for _, e := range f.entries {
		if !e.path.Contains(path) {
			continue
		}
		if e.path.Len() > best {
			best = e.path.Len()
			bestMark = e.mark
		}
	}
	if best < 0 {
		return Unset, false
	}
	return bestMark, true
}

// ShouldPruneUnkeptDescendants reports whether path — using the leaf-most
// mark on its own path — should have its unmarked descendants pruned.
func (f *PruneForest) ShouldPruneUnkeptDescendants(path pathkey.Path) bool {
	mark, ok := f.leafMostMark(path)
	return ok && mark == Prune
}

// PrunesAnything reports whether any entry in the forest is a Prune mark.
func (f *PruneForest) PrunesAnything() bool {
	for _, e := range f.entries {
		if e.mark == Prune {
			return true
		}
	}
	return false
}

// NumPruned returns the number of paths explicitly marked Prune.
func (f *PruneForest) NumPruned() int {
	n := 0
	for _, e := range f.entries {
		if e.mark == Prune {
			n++
		}
	}
	return n
}
