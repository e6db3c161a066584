package view

import (
	"github.com/nodetree/syncdb/pkg/optree"
	"github.com/nodetree/syncdb/pkg/query"
)

// diff compares oldCache against newCache and returns the Changes a
// registration on q should see, in the mandated order: every CHILD_REMOVED,
// then every CHILD_ADDED, then every CHILD_MOVED, then every CHILD_CHANGED,
// followed by a trailing VALUE if applicable.
//
// A non-filtered (default) query always gets a VALUE change when anything
// changed. A filtered query only gets one once its cache becomes (or stays)
// fully initialized — before that, the client has no authoritative whole-node
// view to hand back.
func diff(oldCache, newCache optree.CacheNode, q query.Query) []optree.Change {
	oldNode, newNode := oldCache.Node, newCache.Node
	if oldNode.Equal(newNode) {
		return nil
	}

	var removed, added, moved, changed []optree.Change

	oldOrder := q.Params.OrderedKeys(oldNode)
	newOrder := q.Params.OrderedKeys(newNode)

	oldIndex := make(map[string]int, len(oldOrder))
	for i, k := range oldOrder {
		oldIndex[k] = i
	}
	newIndex := make(map[string]int, len(newOrder))
	for i, k := range newOrder {
		newIndex[k] = i
	}

	// "Moved" is relative order among keys common to both sides, not raw
	// list position, so a child added or removed elsewhere doesn't shift
	// every surviving sibling's index and spuriously flag it as moved.
	commonOldIndex := make(map[string]int, len(oldOrder))
	i := 0
	for _, k := range oldOrder {
		if _, ok := newIndex[k]; !ok {
			continue
		}
		commonOldIndex[k] = i
		i++
	}
	commonNewIndex := make(map[string]int, len(newOrder))
	i = 0
	for _, k := range newOrder {
		if _, ok := oldIndex[k]; !ok {
			continue
		}
		commonNewIndex[k] = i
		i++
	}

	for _, k := range oldOrder {
		if _, ok := newIndex[k]; !ok {
			removed = append(removed, optree.Change{
				Kind:     optree.ChildRemoved,
				ChildKey: k,
				Node:     oldNode.GetImmediateChild(k),
			})
		}
	}

	for i, k := range newOrder {
		oc := oldNode.GetImmediateChild(k)
		nc := newNode.GetImmediateChild(k)
		prev := prevChildKey(newOrder, i)

		if _, existed := oldIndex[k]; !existed {
			added = append(added, optree.Change{
				Kind:         optree.ChildAdded,
				ChildKey:     k,
				Node:         nc,
				PrevChildKey: prev,
			})
			continue
		}

		if !oc.Equal(nc) {
			changed = append(changed, optree.Change{
				Kind:     optree.ChildChanged,
				ChildKey: k,
				Node:     nc,
				OldNode:  oc,
			})
		}

		if commonOldIndex[k] != commonNewIndex[k] {
			moved = append(moved, optree.Change{
				Kind:         optree.ChildMoved,
				ChildKey:     k,
				Node:         nc,
				PrevChildKey: prev,
			})
		}
	}

	out := make([]optree.Change, 0, len(removed)+len(added)+len(moved)+len(changed)+1)
	out = append(out, removed...)
	out = append(out, added...)
	out = append(out, moved...)
	out = append(out, changed...)

	if shouldEmitValue(newCache, q) {
		out = append(out, optree.Change{Kind: optree.ValueChanged, Node: newNode})
	}

	return out
}

func shouldEmitValue(cache optree.CacheNode, q query.Query) bool {
	if q.IsDefault() {
		return true
	}
	return cache.FullyInitialized
}

func prevChildKey(order []string, i int) string {
	if i == 0 {
		return ""
	}
	return order[i-1]
}
