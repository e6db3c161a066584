/*
Package view implements View and ViewCache: the cached, filtered projection
of one query at one path, together with the registrations listening on it
and the Change/Event diffing that turns an applied Operation into the
minimal set of events those registrations should see.
*/
package view

import (
	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/optree"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
	"github.com/nodetree/syncdb/pkg/writetree"
)

// ViewCache holds the two CacheNodes a View tracks: EventCache (what the
// user sees — server data with visible writes overlaid and the query's
// filter/order/limit applied) and ServerCache (the authoritative remote
// snapshot for this view, unfiltered by local writes).
type ViewCache struct {
	EventCache  optree.CacheNode
	ServerCache optree.CacheNode
}

// Registration is one listener attached to a View.
type Registration struct {
	ID string
}

// Event pairs a Change with the registration it is destined for.
type Event struct {
	Registration Registration
	Change       optree.Change
}

// View is the cached, filtered projection of one query, along with its
// event registrations.
type View struct {
	query         query.Query
	cache         ViewCache
	registrations []Registration
}

// New builds a View seeded with the given cache.
func New(q query.Query, cache ViewCache) *View {
	return &View{query: q, cache: cache}
}

// Query returns the view's query.
func (v *View) Query() query.Query { return v.query }

// Cache returns the view's current ViewCache.
func (v *View) Cache() ViewCache { return v.cache }

// IsEmpty reports whether the view has no registrations left.
func (v *View) IsEmpty() bool { return len(v.registrations) == 0 }

// AddEventRegistration attaches r to the view.
func (v *View) AddEventRegistration(r Registration) {
	v.registrations = append(v.registrations, r)
}

// GetInitialEvents returns the synthetic event sequence a newly attached
// registration should see to bring it up to date with the view's current
// event cache: for a filtered query, one CHILD_ADDED per current child (in
// query order) followed by a VALUE if the cache is fully initialized; for
// a default query, a single VALUE.
func (v *View) GetInitialEvents(r Registration) []Event {
	var changes []optree.Change
	if !v.query.IsDefault() {
		prev := ""
		for _, key := range v.query.Params.OrderedKeys(v.cache.EventCache.Node) {
			changes = append(changes, optree.Change{
				Kind:         optree.ChildAdded,
				ChildKey:     key,
				Node:         v.cache.EventCache.Node.GetImmediateChild(key),
				PrevChildKey: prev,
			})
			prev = key
		}
		if v.cache.EventCache.FullyInitialized {
			changes = append(changes, optree.Change{Kind: optree.ValueChanged, Node: v.cache.EventCache.Node})
		}
	} else {
		changes = append(changes, optree.Change{Kind: optree.ValueChanged, Node: v.cache.EventCache.Node})
	}

	events := make([]Event, len(changes))
	for i, c := range changes {
		events[i] = Event{Registration: r, Change: c}
	}
	return events
}

// RemoveEventRegistration removes the registration with id (or every
// registration, if hasID is false) and returns the removed registrations.
// It produces no cancel events.
func (v *View) RemoveEventRegistration(id string, hasID bool) []Registration {
	if !hasID {
		removed := v.registrations
		v.registrations = nil
		return removed
	}
	var removed []Registration
	var kept []Registration
	for _, r := range v.registrations {
		if r.ID == id {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	v.registrations = kept
	return removed
}

// Registrations returns the view's current registrations.
func (v *View) Registrations() []Registration {
	out := make([]Registration, len(v.registrations))
	copy(out, v.registrations)
	return out
}

// ApplyResult is what ApplyOperation returns: the raw Change list (used by
// SyncPoint for tracked-query key bookkeeping) and the per-registration
// Events derived from it.
type ApplyResult struct {
	Changes []optree.Change
	Events  []Event
}

// ApplyOperation updates both the server cache and the event cache per op,
// overlaying writesCache (and, if optCompleteServerCache is non-nil, using
// it as authoritative server data instead of the view's own server cache),
// then diffs old vs. new event cache to produce Changes and Events.
func (v *View) ApplyOperation(op optree.Operation, writesCache writetree.Ref, optCompleteServerCache *node.Node) ApplyResult {
	if m, ok := op.(optree.Merge); ok && len(m.Children) == 0 {
		return ApplyResult{}
	}

	relPath, ok := op.Path().RelativeTo(v.query.Path)
	if !ok {
		return ApplyResult{}
	}

	newServerCache := v.applyToServerCache(op, relPath)
	newEventCache := v.computeEventCache(writesCache, newServerCache, optCompleteServerCache)

	oldEventCache := v.cache.EventCache
	v.cache = ViewCache{EventCache: newEventCache, ServerCache: newServerCache}

	changes := diff(oldEventCache, newEventCache, v.query)
	if len(changes) == 0 {
		return ApplyResult{}
	}

	events := make([]Event, 0, len(changes)*len(v.registrations))
	for _, c := range changes {
		for _, r := range v.registrations {
			events = append(events, Event{Registration: r, Change: c})
		}
	}
	return ApplyResult{Changes: changes, Events: events}
}

func (v *View) applyToServerCache(op optree.Operation, relPath pathkey.Path) optree.CacheNode {
	sc := v.cache.ServerCache
	if !op.Source().IsServer() {
		return sc
	}

	switch o := op.(type) {
	case optree.Overwrite:
		sc.Node = node.SetAtPath(sc.Node, relPath.Components(), o.Snap)
		if relPath.IsEmpty() {
			sc.FullyInitialized = true
		}
	case optree.Merge:
		for k, child := range o.Children {
			sc.Node = node.SetAtPath(sc.Node, append(relPath.Components(), k), child)
		}
	case optree.ListenComplete:
		if relPath.IsEmpty() {
			sc.FullyInitialized = true
		}
	case optree.AckUserWrite:
		// The server already had this data; acking only removes a write's
		// shadow from the event cache, handled via writesCache no longer
		// including it.
	}
	sc.Filtered = !v.query.LoadsAllData()
	return sc
}

func (v *View) computeEventCache(writesCache writetree.Ref, serverCache optree.CacheNode, optCompleteServerCache *node.Node) optree.CacheNode {
	base := serverCache.Node
	hasBase := serverCache.FullyInitialized
	if optCompleteServerCache != nil {
		base = *optCompleteServerCache
		hasBase = true
	}

	overlaid, known := writesCache.CalcCompleteEventCache(base, hasBase)
	if !known {
		overlaid = writesCache.CalcCompleteEventChildren(base)
	}

	filtered := v.query.Params.Apply(overlaid)
	return optree.CacheNode{
		Node:             filtered,
		FullyInitialized: known,
		Filtered:         !v.query.LoadsAllData(),
	}
}
