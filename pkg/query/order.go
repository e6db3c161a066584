package query

import "github.com/nodetree/syncdb/pkg/node"

// OrderedKeys returns n's immediate child keys ordered per p's index (and
// restricted to p's bounds/limit, same as Apply). Used by View to compute
// "moved" / "prevChildKey" diff output, since a Node's own storage is
// always key-sorted and cannot answer "what order would this query show
// these children in" on its own.
func (p Params) OrderedKeys(n node.Node) []string {
	if n.IsLeaf() {
		return nil
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
	keys := make([]string, len(kept))
	for i, ic := range kept {
		keys[i] = ic.key
	}
	return keys
}
