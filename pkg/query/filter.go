package query

import (
	"github.com/nodetree/syncdb/pkg/node"
)

type indexedChild struct {
	key   string
	child node.Node
	rank  node.Priority
}

// indexValue returns the orderable scalar for child under the given index.
func indexValue(idx IndexKind, childPath []string, key string, child node.Node) node.Priority {
	switch idx {
	case ByValue:
		return scalarOf(child.Value())
	case ByPriority:
		return child.Priority()
	case ByChildPath:
		n := child
		for _, part := range childPath {
			n = n.GetImmediateChild(part)
		}
		return scalarOf(n.Value())
	default: // ByKey
		return node.StringPriority(key)
	}
}

func scalarOf(v interface{}) node.Priority {
	switch val := v.(type) {
	case string:
		return node.StringPriority(val)
	case float64:
		return node.NumberPriority(val)
	case int:
		return node.NumberPriority(float64(val))
	case bool:
		if val {
			return node.NumberPriority(1)
		}
		return node.NumberPriority(0)
	default:
		return node.NoPriority
	}
}

func orderedChildren(n node.Node, p Params) []indexedChild {
	var out []indexedChild
	var childPath []string
	if p.Index == ByChildPath {
		childPath = p.ChildPath.Components()
	}
	n.ForEachChild(func(key string, child node.Node) bool {
		out = append(out, indexedChild{
			key:   key,
			child: child,
			rank:  indexValue(p.Index, childPath, key, child),
		})
		return true
	})

	// insertion sort: child counts under one sync point are small, and a
	// stable sort keeps ties on rank ordered by key deterministically.
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && less(out[j], out[j-1]) {
			out[j], out[j-1] = out[j-1], out[j]
			j--
		}
	}
	return out
}

func less(a, b indexedChild) bool {
	if c := a.rank.Compare(b.rank); c != 0 {
		return c < 0
	}
	return a.key < b.key
}

func withinBounds(ic indexedChild, p Params) bool {
	if p.Start.Set {
		c := ic.rank.Compare(p.Start.Value)
		if c < 0 {
			return false
		}
		if c == 0 && p.Start.Key != "" && ic.key < p.Start.Key {
			return false
		}
		if c == 0 && !p.Start.Inclusive && ic.key == p.Start.Key {
			return false
		}
	}
	if p.End.Set {
		c := ic.rank.Compare(p.End.Value)
		if c > 0 {
			return false
		}
		if c == 0 && p.End.Key != "" && ic.key > p.End.Key {
			return false
		}
		if c == 0 && !p.End.Inclusive && ic.key == p.End.Key {
			return false
		}
	}
	return true
}

// Apply filters and orders n's children per p, returning a new node
// containing only the selected children (preserving n's own priority).
// A leaf node or a node with IsDefault params is returned unchanged.
func (p Params) Apply(n node.Node) node.Node {
	if p.IsDefault() || n.IsLeaf() {
		return n
	}

	ordered := orderedChildren(n, p)
	var kept []indexedChild
	for _, ic := range ordered {
		if withinBounds(ic, p) {
			kept = append(kept, ic)
		}
	}

	switch p.LimitKind {
	case LimitToFirst:
		if len(kept) > p.Limit {
			kept = kept[:p.Limit]
		}
	case LimitToLast:
		if len(kept) > p.Limit {
			kept = kept[len(kept)-p.Limit:]
		}
	}

	keep := make(map[string]bool, len(kept))
	for _, ic := range kept {
		keep[ic.key] = true
	}
	result := n
	for _, ic := range ordered {
		if !keep[ic.key] {
			result = result.UpdateImmediateChild(ic.key, node.Empty)
		}
	}
	return result
}

// IsWithinLimits reports whether n's children (already filtered per p's
// bounds) still fit within p's limit. Used to decide whether a child that
// moves into range should be added or would be immediately evicted again.
func (p Params) IsWithinLimits(count int) bool {
	if p.LimitKind == NoLimit {
		return true
	}
	return count <= p.Limit
}
