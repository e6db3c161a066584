package optree

import "github.com/nodetree/syncdb/pkg/node"

// CacheNode pairs a Node with whether it is known to be a complete snapshot
// of its subtree and whether a server-side limit filtered it.
type CacheNode struct {
	Node             node.Node
	FullyInitialized bool
	Filtered         bool
}

// EmptyCacheNode is an uninitialized, unfiltered empty cache.
var EmptyCacheNode = CacheNode{Node: node.Empty}

// IsFullyInitialized reports whether c is a complete snapshot.
func (c CacheNode) IsFullyInitialized() bool { return c.FullyInitialized }

// IsFiltered reports whether a server-side limit shaped c.
func (c CacheNode) IsFiltered() bool { return c.Filtered }
