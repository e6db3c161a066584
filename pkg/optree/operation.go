package optree

import (
	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/pathkey"
)

// Operation is the sealed interface implemented by Overwrite, Merge,
// AckUserWrite, and ListenComplete.
type Operation interface {
	sealOperation()

	// Path returns the path the operation is rooted at.
	Path() pathkey.Path

	// Source returns the operation's origin.
	Source() Source

	// ForChild restricts the operation to the subtree at child key k,
	// returning ok=false if k is unaffected by the operation.
	ForChild(k string) (Operation, bool)
}

// Overwrite replaces the subtree at Path with Snap in its entirety.
type Overwrite struct {
	OpPath pathkey.Path
	Snap   node.Node
	Src    Source
}

func (Overwrite) sealOperation()       {}
func (o Overwrite) Path() pathkey.Path { return o.OpPath }
func (o Overwrite) Source() Source     { return o.Src }

func (o Overwrite) ForChild(k string) (Operation, bool) {
	return Overwrite{
		OpPath: o.OpPath.Child(k),
		Snap:   o.Snap.GetImmediateChild(k),
		Src:    o.Src,
	}, true
}

// NewOverwrite builds an Overwrite operation.
func NewOverwrite(path pathkey.Path, snap node.Node, src Source) Overwrite {
	return Overwrite{OpPath: path, Snap: snap, Src: src}
}

// Merge updates named children of the node at Path in place, leaving
// unnamed children untouched.
type Merge struct {
	OpPath   pathkey.Path
	Children map[string]node.Node
	Src      Source
}

func (Merge) sealOperation()       {}
func (m Merge) Path() pathkey.Path { return m.OpPath }
func (m Merge) Source() Source     { return m.Src }

func (m Merge) ForChild(k string) (Operation, bool) {
	child, ok := m.Children[k]
	if !ok {
		return nil, false
	}
	return Overwrite{OpPath: m.OpPath.Child(k), Snap: child, Src: m.Src}, true
}

// NewMerge builds a Merge operation.
func NewMerge(path pathkey.Path, children map[string]node.Node, src Source) Merge {
	return Merge{OpPath: path, Children: children, Src: src}
}

// AffectedTree describes which relative paths under an AckUserWrite's Path
// were touched by the write being acknowledged or reverted: either the
// whole subtree (an acked/reverted overwrite) or a specific list of
// relative child paths (an acked/reverted merge).
type AffectedTree struct {
	WholeSubtree bool
	Paths        []pathkey.Path
}

// WholeSubtreeAffected builds an AffectedTree covering the entire subtree.
func WholeSubtreeAffected() AffectedTree {
	return AffectedTree{WholeSubtree: true}
}

// PathsAffected builds an AffectedTree covering exactly the given relative
// paths.
func PathsAffected(paths []pathkey.Path) AffectedTree {
	return AffectedTree{Paths: paths}
}

func (a AffectedTree) forChild(k string) (AffectedTree, bool) {
	if a.WholeSubtree {
		return WholeSubtreeAffected(), true
	}
	var rest []pathkey.Path
	for _, p := range a.Paths {
		front, ok := p.Front()
		if !ok || front != k {
			continue
		}
		rest = append(rest, p.PopFront())
	}
	if len(rest) == 0 {
		return AffectedTree{}, false
	}
	return PathsAffected(rest), true
}

// AckUserWrite signals that a user write at Path has been acknowledged (or,
// if Revert, reverted); Affected names which relative paths under Path the
// write's removal changes.
type AckUserWrite struct {
	OpPath   pathkey.Path
	Affected AffectedTree
	Revert   bool
	Src      Source
}

func (AckUserWrite) sealOperation()       {}
func (a AckUserWrite) Path() pathkey.Path { return a.OpPath }
func (a AckUserWrite) Source() Source     { return a.Src }

func (a AckUserWrite) ForChild(k string) (Operation, bool) {
	affected, ok := a.Affected.forChild(k)
	if !ok {
		return nil, false
	}
	return AckUserWrite{
		OpPath:   a.OpPath.Child(k),
		Affected: affected,
		Revert:   a.Revert,
		Src:      a.Src,
	}, true
}

// NewAckUserWrite builds an AckUserWrite operation.
func NewAckUserWrite(path pathkey.Path, affected AffectedTree, revert bool, src Source) AckUserWrite {
	return AckUserWrite{OpPath: path, Affected: affected, Revert: revert, Src: src}
}

// ListenComplete marks that the backend has delivered a full snapshot for
// the subtree at Path.
type ListenComplete struct {
	OpPath pathkey.Path
	Src    Source
}

func (ListenComplete) sealOperation()       {}
func (l ListenComplete) Path() pathkey.Path { return l.OpPath }
func (l ListenComplete) Source() Source     { return l.Src }

func (l ListenComplete) ForChild(k string) (Operation, bool) {
	return ListenComplete{OpPath: l.OpPath.Child(k), Src: l.Src}, true
}

// NewListenComplete builds a ListenComplete operation.
func NewListenComplete(path pathkey.Path, src Source) ListenComplete {
	return ListenComplete{OpPath: path, Src: src}
}
