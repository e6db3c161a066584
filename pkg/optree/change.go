package optree

import "github.com/nodetree/syncdb/pkg/node"

// ChangeKind names the kind of diff a View emits between two event caches.
type ChangeKind int

const (
	ChildAdded ChangeKind = iota
	ChildRemoved
	ChildChanged
	ChildMoved
	ValueChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ChildAdded:
		return "child_added"
	case ChildRemoved:
		return "child_removed"
	case ChildChanged:
		return "child_changed"
	case ChildMoved:
		return "child_moved"
	case ValueChanged:
		return "value"
	default:
		return "unknown"
	}
}

// Change is one diff entry produced by applying an Operation to a View.
// ChildKey, Node, and OldNode are unset for ValueChanged; PrevChildKey is
// the key of the child immediately preceding this one in the new ordering
// ("" if this child is now first), set for ChildAdded and ChildMoved.
type Change struct {
	Kind         ChangeKind
	ChildKey     string
	Node         node.Node
	OldNode      node.Node
	PrevChildKey string
}
