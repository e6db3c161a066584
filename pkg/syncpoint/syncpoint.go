/*
Package syncpoint implements SyncPoint: the set of Views listening at one
path, routing Operations to the views they affect and tracking the
filtered-query key deltas PersistenceManager needs for tracked-query
bookkeeping.
*/
package syncpoint

import (
	"fmt"

	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/optree"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
	"github.com/nodetree/syncdb/pkg/view"
	"github.com/nodetree/syncdb/pkg/writetree"
)

// KeyDelta is the set of children a filtered query started or stopped
// containing as a result of one applied operation, reported so
// PersistenceManager can keep its tracked-query key set current.
type KeyDelta struct {
	Query   query.Query
	Added   []string
	Removed []string
}

// ApplyResult bundles everything SyncTree needs back from applying an
// operation to a SyncPoint.
type ApplyResult struct {
	Events    []view.Event
	KeyDeltas []KeyDelta
}

// RemoveResult is what RemoveEventRegistration reports.
type RemoveResult struct {
	// Removed holds every query whose view became empty in this call and
	// was dropped.
	Removed []query.Query
	Events  []view.Event
}

// SyncPoint owns every View at one path.
type SyncPoint struct {
	path  pathkey.Path
	views map[string]*view.View // keyed by query.Identifier()
}

// New builds an empty SyncPoint at path.
func New(path pathkey.Path) *SyncPoint {
	return &SyncPoint{path: path, views: make(map[string]*view.View)}
}

// Path returns the path this sync point is rooted at.
func (sp *SyncPoint) Path() pathkey.Path { return sp.path }

// IsEmpty reports whether the sync point has no views left.
func (sp *SyncPoint) IsEmpty() bool { return len(sp.views) == 0 }

// ViewForQuery returns the view for q, if one exists.
func (sp *SyncPoint) ViewForQuery(q query.Query) (*view.View, bool) {
	v, ok := sp.views[q.Identifier()]
	return v, ok
}

// ViewExistsForQuery reports whether a view for q exists.
func (sp *SyncPoint) ViewExistsForQuery(q query.Query) bool {
	_, ok := sp.views[q.Identifier()]
	return ok
}

// HasCompleteView reports whether any view here is a default (loads-all)
// view — there is at most one, per invariant.
func (sp *SyncPoint) HasCompleteView() bool {
	_, ok := sp.GetCompleteView()
	return ok
}

// GetCompleteView returns the default view at this point, if any.
func (sp *SyncPoint) GetCompleteView() (*view.View, bool) {
	for _, v := range sp.views {
		if v.Query().IsDefault() {
			return v, true
		}
	}
	return nil, false
}

// GetCompleteServerCache returns the server cache at relPath, read off the
// default view if one exists and is fully initialized.
func (sp *SyncPoint) GetCompleteServerCache(relPath pathkey.Path) (node.Node, bool) {
	v, ok := sp.GetCompleteView()
	if !ok || !v.Cache().ServerCache.FullyInitialized {
		return node.Empty, false
	}
	return node.GetAtPath(v.Cache().ServerCache.Node, relPath.Components()), true
}

// GetQueryViews returns every filtered (non-default) view at this point.
func (sp *SyncPoint) GetQueryViews() []*view.View {
	var out []*view.View
	for _, v := range sp.views {
		if !v.Query().IsDefault() {
			out = append(out, v)
		}
	}
	return out
}

// ApplyOperation fans op out to the view(s) it affects: exactly one, if
// op's source is tagged to a specific query, else every view at the point.
func (sp *SyncPoint) ApplyOperation(op optree.Operation, writesCache writetree.Ref, optCompleteServerCache *node.Node) (ApplyResult, error) {
	if tag, ok := op.Source().Tag(); ok {
		for _, v := range sp.views {
			if v.Query().Identifier() == tag {
				return sp.applyToOne(v, op, writesCache, optCompleteServerCache), nil
			}
		}
		return ApplyResult{}, fmt.Errorf("syncpoint: tagged operation for query %q has no view at %s", tag, sp.path)
	}

	var result ApplyResult
	for _, v := range sp.views {
		r := sp.applyToOne(v, op, writesCache, optCompleteServerCache)
		result.Events = append(result.Events, r.Events...)
		result.KeyDeltas = append(result.KeyDeltas, r.KeyDeltas...)
	}
	return result, nil
}

func (sp *SyncPoint) applyToOne(v *view.View, op optree.Operation, writesCache writetree.Ref, optCompleteServerCache *node.Node) ApplyResult {
	before := childKeySet(v.Cache().EventCache.Node)
	r := v.ApplyOperation(op, writesCache, optCompleteServerCache)
	result := ApplyResult{Events: r.Events}

	if v.Query().IsDefault() || len(r.Changes) == 0 {
		return result
	}
	after := childKeySet(v.Cache().EventCache.Node)
	added, removed := diffKeySets(before, after)
	if len(added) > 0 || len(removed) > 0 {
		result.KeyDeltas = append(result.KeyDeltas, KeyDelta{Query: v.Query(), Added: added, Removed: removed})
	}
	return result
}

// AddEventRegistration attaches r to the view for q, creating the view (and
// seeding its cache) if none exists yet. seedKeys is invoked with the
// filtered query's initial child-key set when a new filtered view is
// created, so the caller can persist tracked-query keys.
func (sp *SyncPoint) AddEventRegistration(
	q query.Query,
	r view.Registration,
	writesCache writetree.Ref,
	serverCache node.Node,
	serverCacheComplete bool,
	seedKeys func(q query.Query, keys []string),
) (created bool, events []view.Event) {
	if v, ok := sp.views[q.Identifier()]; ok {
		v.AddEventRegistration(r)
		return false, v.GetInitialEvents(r)
	}

	var base node.Node
	var hasBase bool
	if serverCacheComplete {
		base, hasBase = writesCache.CalcCompleteEventCache(serverCache, true)
	} else {
		base = writesCache.CalcCompleteEventChildren(serverCache)
		hasBase = false
	}
	if base == nil {
		base = node.Empty
	}

	filtered := q.Params.Apply(base)
	eventCache := optree.CacheNode{Node: filtered, FullyInitialized: hasBase, Filtered: !q.LoadsAllData()}
	serverCacheNode := optree.CacheNode{Node: serverCache, FullyInitialized: serverCacheComplete, Filtered: !q.LoadsAllData()}

	v := view.New(q, view.ViewCache{EventCache: eventCache, ServerCache: serverCacheNode})
	v.AddEventRegistration(r)
	sp.views[q.Identifier()] = v

	if !q.IsDefault() && seedKeys != nil {
		seedKeys(q, q.Params.OrderedKeys(filtered))
	}

	return true, v.GetInitialEvents(r)
}

// RemoveEventRegistration removes a registration from the view for q (or
// from every view, if q is the default query and spans all of them per the
// caller's convention — see SyncTree, which passes the default query only
// when it means "all views"). Empty views are dropped from the sync point.
func (sp *SyncPoint) RemoveEventRegistration(q query.Query, id string, hasID bool) RemoveResult {
	var result RemoveResult
	apply := func(v *view.View) {
		removed := v.RemoveEventRegistration(id, hasID)
		if len(removed) == 0 {
			return
		}
		if v.IsEmpty() {
			result.Removed = append(result.Removed, v.Query())
		}
	}

	if q.IsDefault() {
		for _, v := range sp.views {
			apply(v)
		}
	} else if v, ok := sp.views[q.Identifier()]; ok {
		apply(v)
	}

	for key, v := range sp.views {
		if v.IsEmpty() {
			delete(sp.views, key)
		}
	}
	return result
}

func childKeySet(n node.Node) map[string]bool {
	out := make(map[string]bool)
	n.ForEachChild(func(key string, _ node.Node) bool {
		out[key] = true
		return true
	})
	return out
}

func diffKeySets(before, after map[string]bool) (added, removed []string) {
	for k := range after {
		if !before[k] {
			added = append(added, k)
		}
	}
	for k := range before {
		if !after[k] {
			removed = append(removed, k)
		}
	}
	return added, removed
}
