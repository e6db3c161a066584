/*
Package node implements the persistent JSON tree synced between the remote
store and its local mirror.

A Node is either a leaf (a primitive value plus an optional Priority) or a
children node (a sorted mapping from child key to Node). Nodes are
immutable: every mutating-looking operation returns a new Node and never
modifies its receiver. The exact balancing strategy backing a children
node's child map is an implementation detail — callers only depend on the
Node interface, so a future persistent-tree backing can replace the current
sorted-slice one without changing any caller.
*/
package node

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Node is the sealed interface implemented by leafNode and childrenNode.
// The unexported sealNode method prevents external packages from adding
// variants, matching the tagged-variant design spec.md calls for.
type Node interface {
	sealNode()

	// IsLeaf reports whether this node is a leaf (holds a primitive value).
	IsLeaf() bool

	// IsEmpty reports whether this is the canonical empty children node.
	IsEmpty() bool

	// Value returns the leaf's primitive value, or nil for a children node.
	Value() interface{}

	// Priority returns the node's priority, or NoPriority.
	Priority() Priority

	// GetImmediateChild returns the child at key, or Empty if absent.
	// Leaves have no children and always return Empty.
	GetImmediateChild(key string) Node

	// UpdateImmediateChild returns a new node with key's child replaced by
	// child. Passing Empty for child removes the key. Calling this on a
	// leaf promotes it to a children node, discarding the leaf's value
	// (its priority is preserved).
	UpdateImmediateChild(key string, child Node) Node

	// NumChildren returns the number of immediate children; always 0 for a
	// leaf.
	NumChildren() int

	// ForEachChild invokes fn for each immediate child in key order,
	// stopping early if fn returns false.
	ForEachChild(fn func(key string, child Node) bool)

	// Hash returns a content hash of the node, stable across equal nodes.
	Hash() string

	// Equal reports deep structural equality, including priorities.
	Equal(other Node) bool

	// Export returns o's plain JSON-able representation: a primitive for a
	// leaf, a map[string]interface{} for a children node, or (if it has a
	// priority) a map with a ".priority" key alongside ".value"/children.
	Export() interface{}
}

// Empty is the canonical empty children node.
var Empty Node = childrenNode{}

// NewLeaf builds a leaf node carrying value and no priority.
func NewLeaf(value interface{}) Node {
	return leafNode{value: value, priority: NoPriority}
}

// NewLeafWithPriority builds a leaf node carrying value and priority.
func NewLeafWithPriority(value interface{}, priority Priority) Node {
	return leafNode{value: value, priority: priority}
}

type leafNode struct {
	value    interface{}
	priority Priority
}

func (leafNode) sealNode()        {}
func (leafNode) IsLeaf() bool     { return true }
func (leafNode) IsEmpty() bool    { return false }
func (l leafNode) Value() interface{} { return l.value }
func (l leafNode) Priority() Priority { return l.priority }

func (leafNode) GetImmediateChild(string) Node { return Empty }

func (l leafNode) UpdateImmediateChild(key string, child Node) Node {
	return childrenNode{}.UpdateImmediateChild(key, child).(childrenNode).withPriority(l.priority)
}

func (leafNode) NumChildren() int                         { return 0 }
func (leafNode) ForEachChild(func(string, Node) bool)     {}

func (l leafNode) Hash() string {
	return hashOf(l.Export())
}

func (l leafNode) Equal(other Node) bool {
	o, ok := other.(leafNode)
	if !ok {
		return false
	}
	return l.priority.Equal(o.priority) && jsonEqual(l.value, o.value)
}

func (l leafNode) Export() interface{} {
	if l.priority.IsNil() {
		return l.value
	}
	return map[string]interface{}{
		".value":    l.value,
		".priority": l.priority.Export(),
	}
}

type childEntry struct {
	key  string
	node Node
}

type childrenNode struct {
	children []childEntry // sorted by key
	priority Priority
}

func (childrenNode) sealNode()     {}
func (childrenNode) IsLeaf() bool  { return false }
func (c childrenNode) IsEmpty() bool {
	return len(c.children) == 0 && c.priority.IsNil()
}
func (childrenNode) Value() interface{}      { return nil }
func (c childrenNode) Priority() Priority     { return c.priority }
func (c childrenNode) NumChildren() int       { return len(c.children) }

func (c childrenNode) withPriority(p Priority) Node {
	c.priority = p
	return c
}

func (c childrenNode) indexOf(key string) (int, bool) {
	i := sort.Search(len(c.children), func(i int) bool {
		return c.children[i].key >= key
	})
	if i < len(c.children) && c.children[i].key == key {
		return i, true
	}
	return i, false
}

func (c childrenNode) GetImmediateChild(key string) Node {
	i, found := c.indexOf(key)
	if !found {
		return Empty
	}
	return c.children[i].node
}

func (c childrenNode) UpdateImmediateChild(key string, child Node) Node {
	i, found := c.indexOf(key)
	remove := child == nil || child.IsEmpty()

	next := make([]childEntry, 0, len(c.children)+1)
	next = append(next, c.children...)

	switch {
	case found && remove:
		next = append(next[:i], next[i+1:]...)
	case found:
		next[i] = childEntry{key: key, node: child}
	case !found && !remove:
		next = append(next, childEntry{})
		copy(next[i+1:], next[i:])
		next[i] = childEntry{key: key, node: child}
	}

	return childrenNode{children: next, priority: c.priority}
}

func (c childrenNode) ForEachChild(fn func(key string, child Node) bool) {
	for _, e := range c.children {
		if !fn(e.key, e.node) {
			return
		}
	}
}

func (c childrenNode) Hash() string {
	return hashOf(c.Export())
}

func (c childrenNode) Equal(other Node) bool {
	o, ok := other.(childrenNode)
	if !ok {
		return false
	}
	if !c.priority.Equal(o.priority) || len(c.children) != len(o.children) {
		return false
	}
	for i, e := range c.children {
		if e.key != o.children[i].key || !e.node.Equal(o.children[i].node) {
			return false
		}
	}
	return true
}

func (c childrenNode) Export() interface{} {
	out := make(map[string]interface{}, len(c.children)+1)
	for _, e := range c.children {
		out[e.key] = e.node.Export()
	}
	if !c.priority.IsNil() {
		out[".priority"] = c.priority.Export()
	}
	return out
}

func hashOf(exported interface{}) string {
	b, err := json.Marshal(exported)
	if err != nil {
		// Exported values are always JSON-marshalable primitives, maps, and
		// slices; a marshal failure here means a caller smuggled an
		// unsupported type into a leaf value, which is a programming error.
		panic("node: export produced unmarshalable value: " + err.Error())
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

func jsonEqual(a, b interface{}) bool {
	ab, aerr := json.Marshal(a)
	bb, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(ab) == string(bb)
}
