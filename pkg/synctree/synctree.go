/*
Package synctree implements SyncTree: the central entry point tying
together the SyncPoint tree, the pending-write overlay, and durable
persistence, and the single place that decides which backend listens need
to open or close as registrations come and go.

A SyncTree is not internally locked. Every exported method mutates shared
state (the sync-point map, the pending-write tree, the tag maps) and the
caller must confine all calls on one SyncTree to a single goroutine — the
"single logical execution context" the core assumes throughout, matching
the concurrency contract documented on PersistenceManager.
*/
package synctree

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nodetree/syncdb/pkg/log"
	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/optree"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/persistence"
	"github.com/nodetree/syncdb/pkg/query"
	"github.com/nodetree/syncdb/pkg/syncpoint"
	"github.com/nodetree/syncdb/pkg/view"
	"github.com/nodetree/syncdb/pkg/writetree"
)

// ListenProvider is the backend collaborator SyncTree asks to open and
// close server listens. It is supplied by the caller; nothing in this
// package implements the actual wire transport.
type ListenProvider interface {
	// StartListening opens a backend listen for q. hasTag/tag identify a
	// query-scoped listen (hasTag true) versus a default, untagged one.
	// hashFn returns a content hash of the locally known server cache for
	// the backend to revalidate against; onComplete is invoked by the
	// provider when the backend reports the listen's outcome.
	StartListening(q query.Query, tag int64, hasTag bool, hashFn func() string, onComplete func(ok bool, reason error))

	// StopListening closes a previously opened listen.
	StopListening(q query.Query, tag int64, hasTag bool)
}

// SyncTree owns every SyncPoint, the pending-write overlay, and the
// tag bookkeeping used to route tagged server responses back to the
// filtered query that opened their listen.
type SyncTree struct {
	points map[string]*syncpoint.SyncPoint // keyed by Path.String()
	writes *writetree.WriteTree

	queryToTag map[string]int64       // query.Key() -> tag
	tagToQuery map[int64]query.Query  // tag -> query
	nextTag    int64

	nextWriteID int64 // monotonic; restored by caller as max(persisted.id)+1

	persistence *persistence.Manager // nil: memory-only, no durable side effects
	listener    ListenProvider
}

// New builds an empty SyncTree. persistenceManager may be nil to run
// memory-only; firstWriteID seeds the monotonic write-id counter (callers
// restoring from persistence pass max(persisted.id)+1, else 1).
func New(persistenceManager *persistence.Manager, listener ListenProvider, firstWriteID int64) *SyncTree {
	return &SyncTree{
		points:      make(map[string]*syncpoint.SyncPoint),
		writes:      writetree.New(),
		queryToTag:  make(map[string]int64),
		tagToQuery:  make(map[int64]query.Query),
		nextWriteID: firstWriteID,
		persistence: persistenceManager,
		listener:    listener,
	}
}

// NextWriteID returns the next write id and advances the counter, giving
// callers a monotonic id to attach to a new user write before recording it.
func (t *SyncTree) NextWriteID() int64 {
	id := t.nextWriteID
	t.nextWriteID++
	return id
}

func (t *SyncTree) pointAt(path pathkey.Path) (*syncpoint.SyncPoint, bool) {
	sp, ok := t.points[path.String()]
	return sp, ok
}

func (t *SyncTree) ensurePoint(path pathkey.Path) *syncpoint.SyncPoint {
	if sp, ok := t.pointAt(path); ok {
		return sp
	}
	sp := syncpoint.New(path)
	t.points[path.String()] = sp
	return sp
}

func (t *SyncTree) dropIfEmpty(sp *syncpoint.SyncPoint) {
	if sp.IsEmpty() {
		delete(t.points, sp.Path().String())
	}
}

// applyToTree applies op to every sync point at or above op.Path() — the
// only points whose views can possibly be affected, since View.ApplyOperation
// resolves op against a view by taking op.Path() relative to the view's own
// query path.
func (t *SyncTree) applyToTree(op optree.Operation) []view.Event {
	var events []view.Event
	for _, sp := range t.points {
		if !sp.Path().Contains(op.Path()) {
			continue
		}
		result, err := sp.ApplyOperation(op, t.writes.ChildWrites(sp.Path()), nil)
		if err != nil {
			panic(fmt.Sprintf("synctree: %v", err))
		}
		events = append(events, result.Events...)
		for _, kd := range result.KeyDeltas {
			if t.persistence != nil {
				t.persistence.UpdateTrackedQueryKeys(kd.Query, kd.Added, kd.Removed)
			}
		}
	}
	return events
}

// UserOverwrite records a user overwrite write and, if visible, applies it
// to every affected sync point.
func (t *SyncTree) UserOverwrite(path pathkey.Path, snap node.Node, writeID int64, visible bool) []view.Event {
	if err := t.writes.AddOverwrite(path, snap, writeID, visible); err != nil {
		panic(fmt.Sprintf("synctree: %v", err))
	}
	if !visible {
		return nil
	}
	return t.applyToTree(optree.NewOverwrite(path, snap, optree.UserSource()))
}

// UserMerge records a user merge write and applies it to every affected
// sync point. Merges are always visible.
func (t *SyncTree) UserMerge(path pathkey.Path, children map[string]node.Node, writeID int64) []view.Event {
	if err := t.writes.AddMerge(path, children, writeID); err != nil {
		panic(fmt.Sprintf("synctree: %v", err))
	}
	return t.applyToTree(optree.NewMerge(path, children, optree.UserSource()))
}

// AckUserWrite removes the pending write by id. If the write was visible,
// it folds the now-confirmed snapshot into persistence (so a later restart
// sees it as server data) and applies an AckUserWrite operation to every
// affected sync point so their event caches stop shadowing it.
func (t *SyncTree) AckUserWrite(writeID int64, lastUse int64, revert bool) []view.Event {
	rec, ok := t.writes.GetWrite(writeID)
	changed := t.writes.RemoveWrite(writeID)
	if t.persistence != nil {
		t.persistence.RemoveUserWrite(writeID)
	}
	if !ok || !changed {
		return nil
	}

	if !revert && t.persistence != nil {
		if rec.IsMerge {
			t.persistence.ApplyUserMerge(rec.Children, rec.Path, lastUse)
		} else {
			t.persistence.ApplyUserWrite(rec.Snap, rec.Path, lastUse)
		}
	}

	var affected optree.AffectedTree
	if rec.IsMerge {
		paths := make([]pathkey.Path, 0, len(rec.Children))
		for k := range rec.Children {
			paths = append(paths, pathkey.New(k))
		}
		affected = optree.PathsAffected(paths)
	} else {
		affected = optree.WholeSubtreeAffected()
	}

	return t.applyToTree(optree.NewAckUserWrite(rec.Path, affected, revert, optree.UserSource()))
}

// ServerOverwrite persists and applies an untagged server overwrite.
func (t *SyncTree) ServerOverwrite(path pathkey.Path, snap node.Node, lastUse int64) []view.Event {
	if t.persistence != nil {
		t.persistence.ApplyServerOverwrite(snap, query.DefaultAtPath(path), lastUse)
	}
	return t.applyToTree(optree.NewOverwrite(path, snap, optree.ServerSource()))
}

// ServerMerge persists and applies an untagged server merge.
func (t *SyncTree) ServerMerge(path pathkey.Path, children map[string]node.Node) []view.Event {
	if t.persistence != nil {
		t.persistence.ApplyServerMerge(children, path)
	}
	return t.applyToTree(optree.NewMerge(path, children, optree.ServerSource()))
}

// ServerListenComplete persists and applies an untagged listen-complete.
func (t *SyncTree) ServerListenComplete(path pathkey.Path, lastUse int64) []view.Event {
	if t.persistence != nil {
		t.persistence.SetQueryComplete(query.DefaultAtPath(path), lastUse)
	}
	return t.applyToTree(optree.NewListenComplete(path, optree.ServerSource()))
}

// TaggedServerOverwrite routes a server overwrite for a previously tagged
// filtered query. If the tag has been forgotten the update is silently
// dropped, per the missing-query race policy.
func (t *SyncTree) TaggedServerOverwrite(tag int64, path pathkey.Path, snap node.Node, lastUse int64) []view.Event {
	q, ok := t.tagToQuery[tag]
	if !ok {
		return nil
	}
	if t.persistence != nil {
		if path.Equal(q.Path) {
			t.persistence.ApplyServerOverwrite(snap, q, lastUse)
		} else {
			t.persistence.ApplyServerOverwrite(snap, query.DefaultAtPath(path), lastUse)
		}
	}
	return t.applyToTree(optree.NewOverwrite(path, snap, optree.TaggedSource(q.Identifier())))
}

// TaggedServerMerge routes a server merge for a previously tagged filtered
// query, dropping it silently if the tag is unknown.
func (t *SyncTree) TaggedServerMerge(tag int64, path pathkey.Path, children map[string]node.Node) []view.Event {
	q, ok := t.tagToQuery[tag]
	if !ok {
		return nil
	}
	if t.persistence != nil {
		t.persistence.ApplyServerMerge(children, path)
	}
	return t.applyToTree(optree.NewMerge(path, children, optree.TaggedSource(q.Identifier())))
}

// TaggedServerListenComplete routes a listen-complete for a previously
// tagged filtered query, dropping it silently if the tag is unknown.
func (t *SyncTree) TaggedServerListenComplete(tag int64, path pathkey.Path, lastUse int64) []view.Event {
	q, ok := t.tagToQuery[tag]
	if !ok {
		return nil
	}
	if t.persistence != nil {
		t.persistence.SetQueryComplete(q, lastUse)
	}
	return t.applyToTree(optree.NewListenComplete(path, optree.TaggedSource(q.Identifier())))
}

// CalcCompleteEventCache finds the deepest known server cache on path among
// existing sync points and overlays the visible pending writes under path,
// excluding the given write ids. Hidden writes are not overlaid.
func (t *SyncTree) CalcCompleteEventCache(path pathkey.Path, excludeIDs map[int64]bool) (node.Node, bool) {
	var base node.Node
	hasBase := false
	bestDepth := -1

	for _, sp := range t.points {
		if !sp.Path().Contains(path) {
			continue
		}
		rel, _ := path.RelativeTo(sp.Path())
		if sp.Path().Len() <= bestDepth {
			continue
		}
		if n, ok := sp.GetCompleteServerCache(rel); ok {
			base, hasBase, bestDepth = n, true, sp.Path().Len()
		}
	}

	ref := t.writes.ChildWrites(path)
	if excludeIDs != nil {
		ref = ref.WithExclusions(excludeIDs)
	}
	return ref.CalcCompleteEventCache(base, hasBase)
}

// AddEventRegistration attaches r to the view for q, creating whatever
// sync point and view are needed, seeding their caches from the deepest
// known in-memory data or — failing that — from persistence, and opening a
// backend listen when this registration is the first to need one.
func (t *SyncTree) AddEventRegistration(q query.Query, r view.Registration, lastUse int64) []view.Event {
	sp := t.ensurePoint(q.Path)
	ancestorComplete := t.hasCompleteAncestor(q.Path)

	if t.persistence != nil {
		t.persistence.SetQueryActive(q, lastUse)
	}

	isNewView := !sp.ViewExistsForQuery(q)
	if isNewView && !q.IsDefault() {
		t.assignTag(q)
	}

	serverCache, complete := t.resolveServerCache(q)

	seedKeys := func(sq query.Query, keys []string) {
		if t.persistence != nil {
			t.persistence.SetTrackedQueryKeys(sq, keys)
		}
	}
	created, events := sp.AddEventRegistration(q, r, t.writes.ChildWrites(q.Path), serverCache, complete, seedKeys)

	if created && !ancestorComplete {
		t.setupListener(q, lastUse)
	}
	return events
}

func (t *SyncTree) hasCompleteAncestor(path pathkey.Path) bool {
	for _, sp := range t.points {
		if sp.Path().Contains(path) && !sp.Path().Equal(path) && sp.HasCompleteView() {
			return true
		}
	}
	return false
}

// resolveServerCache finds the best server cache available for q without
// blocking on the backend: an in-memory cache at q.Path, else persistence,
// else the empty node.
func (t *SyncTree) resolveServerCache(q query.Query) (node.Node, bool) {
	if sp, ok := t.pointAt(q.Path); ok {
		if n, ok := sp.GetCompleteServerCache(pathkey.Empty); ok {
			return n, true
		}
	}
	if t.persistence == nil {
		return node.Empty, false
	}
	result := t.persistence.GetServerCache(q)
	return result.Node, result.FullyInitialized
}

func (t *SyncTree) assignTag(q query.Query) int64 {
	t.nextTag++
	tag := t.nextTag
	t.queryToTag[q.Key()] = tag
	t.tagToQuery[tag] = q
	return tag
}

func (t *SyncTree) setupListener(q query.Query, lastUse int64) {
	if t.listener == nil {
		return
	}
	listenQuery := query.ForListening(q)
	tag, hasTag := int64(0), false
	if !listenQuery.IsDefault() {
		tag, hasTag = t.queryToTag[q.Key()], true
	}

	hashFn := func() string {
		n, _ := t.resolveServerCache(listenQuery)
		return n.Hash()
	}
	batchID := uuid.NewString()
	log.WithBatchID(batchID).Debug().Str("path", listenQuery.Path.String()).Msg("starting listen")
	t.listener.StartListening(listenQuery, tag, hasTag, hashFn, func(ok bool, reason error) {
		if ok {
			log.WithBatchID(batchID).Debug().Msg("listen established")
			return
		}
		log.WithBatchID(batchID).Warn().Err(reason).Msg("listen failed, removing registration")
		t.RemoveEventRegistration(q, "", false, reason, lastUse)
	})

	if listenQuery.IsDefault() {
		t.stopShadowedListens(q.Path)
	}
}

// stopShadowedListens stops every filtered listen strictly beneath path now
// that a default listen there covers its whole subtree.
func (t *SyncTree) stopShadowedListens(path pathkey.Path) {
	for _, sp := range t.points {
		if sp.Path().Equal(path) || !path.Contains(sp.Path()) {
			continue
		}
		for _, v := range sp.GetQueryViews() {
			t.stopListen(v.Query())
		}
	}
}

func (t *SyncTree) stopListen(q query.Query) {
	if t.listener == nil {
		return
	}
	listenQuery := query.ForListening(q)
	if listenQuery.IsDefault() {
		t.listener.StopListening(listenQuery, 0, false)
		return
	}
	tag, ok := t.queryToTag[q.Key()]
	if !ok {
		return
	}
	t.listener.StopListening(listenQuery, tag, true)
	delete(t.queryToTag, q.Key())
	delete(t.tagToQuery, tag)
}

// RemoveEventRegistration detaches registration id (or every registration,
// if hasID is false) from the view for q, tearing down the sync point if it
// empties out and re-establishing listener coverage if the removal
// uncovers a subtree that was relying on a now-gone default listen.
func (t *SyncTree) RemoveEventRegistration(q query.Query, id string, hasID bool, cancelErr error, lastUse int64) []view.Event {
	sp, ok := t.pointAt(q.Path)
	if !ok {
		return nil
	}
	if !q.IsDefault() && !sp.ViewExistsForQuery(q) {
		return nil
	}

	result := sp.RemoveEventRegistration(q, id, hasID)
	t.dropIfEmpty(sp)

	for _, removedQuery := range result.Removed {
		if t.persistence != nil {
			t.persistence.SetQueryInactive(removedQuery, lastUse)
		}
	}

	removingDefault := false
	for _, removedQuery := range result.Removed {
		if removedQuery.IsDefault() {
			removingDefault = true
		}
	}
	if !removingDefault || len(result.Removed) == 0 {
		return result.Events
	}

	covered := t.hasCompleteAncestor(q.Path)
	if !covered {
		t.restoreCoverage(q.Path, lastUse)
	}
	if !covered && cancelErr == nil {
		for _, removedQuery := range result.Removed {
			t.stopListen(removedQuery)
		}
	}
	return result.Events
}

// restoreCoverage re-opens listens for every view still present in the
// subtree at path once a covering default listen there is gone.
func (t *SyncTree) restoreCoverage(path pathkey.Path, lastUse int64) {
	for _, sp := range t.points {
		if !path.Contains(sp.Path()) {
			continue
		}
		if v, ok := sp.GetCompleteView(); ok {
			t.setupListener(v.Query(), lastUse)
			continue
		}
		for _, v := range sp.GetQueryViews() {
			t.setupListener(v.Query(), lastUse)
		}
	}
}
