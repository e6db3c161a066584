package persistence

import (
	"fmt"

	"github.com/nodetree/syncdb/pkg/cachepolicy"
	"github.com/nodetree/syncdb/pkg/log"
	"github.com/nodetree/syncdb/pkg/node"
	"github.com/nodetree/syncdb/pkg/optree"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/query"
	"github.com/nodetree/syncdb/pkg/trackedquery"
)

// jobQueueDepth is the buffered channel depth for queued persistence
// operations, matching the teacher's event broker's buffering of 100.
const jobQueueDepth = 100

// Manager owns the three durable stores and the tracked-query index,
// sequencing every durable operation behind one worker goroutine so stores
// observe writes in submission order without an explicit lock — mirroring
// the teacher's single-consumer event broker loop.
type Manager struct {
	serverCache    *ServerCacheStore
	userWrites     *UserWriteStore
	trackedQueries *TrackedQueryStore
	queries        *trackedquery.Manager
	policy         cachepolicy.Policy

	jobs   chan func()
	stopCh chan struct{}
	done   chan struct{}

	serverUpdatesSincePruneCheck int
	pruneCycles                  int64
	prunedQueries                int64
}

// Stats is a point-in-time snapshot of the persistence layer's state, used
// to feed the server's metrics gauges.
type Stats struct {
	CacheSizeBytes  int64
	ActiveQueries   int
	InactiveQueries int
	PruneCycles     int64
	PrunedQueries   int64
}

// Stats blocks until every write submitted before this call has landed,
// then reports the current cache size, tracked-query counts, and
// cumulative pruning activity.
func (m *Manager) Stats() Stats {
	var s Stats
	m.call(func() {
		size, err := m.serverCache.EstimatedSize()
		if err != nil {
			warnStorageFailure("stats.estimatedSize", err)
		}
		active, inactive := m.queries.ActiveInactiveCounts()
		s = Stats{
			CacheSizeBytes:  size,
			ActiveQueries:   active,
			InactiveQueries: inactive,
			PruneCycles:     m.pruneCycles,
			PrunedQueries:   m.prunedQueries,
		}
	})
	return s
}

// New builds a Manager and starts its worker goroutine.
func New(serverCache *ServerCacheStore, userWrites *UserWriteStore, trackedQueries *TrackedQueryStore, queries *trackedquery.Manager, policy cachepolicy.Policy) *Manager {
	m := &Manager{
		serverCache:    serverCache,
		userWrites:     userWrites,
		trackedQueries: trackedQueries,
		queries:        queries,
		policy:         policy,
		jobs:           make(chan func(), jobQueueDepth),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Manager) run() {
	defer close(m.done)
	for {
		select {
		case job := <-m.jobs:
			job()
		case <-m.stopCh:
			m.drain()
			return
		}
	}
}

// drain runs every job still queued at shutdown so a close doesn't silently
// lose writes already accepted from a caller's point of view.
func (m *Manager) drain() {
	for {
		select {
		case job := <-m.jobs:
			job()
		default:
			return
		}
	}
}

// enqueue submits job to the worker and returns without waiting for it to
// run; the caller blocks only while the job queue's buffer is full. This
// matches the spec's "effects are asynchronous; callers do not await"
// contract for writes. Errors are not surfaced to the caller — per the storage-failure
// policy, they are logged and the core proceeds best-effort.
func (m *Manager) enqueue(job func()) {
	select {
	case m.jobs <- job:
	case <-m.stopCh:
	}
}

// call submits job and blocks until the worker has run it, used for reads
// that must observe every write submitted strictly before them.
func (m *Manager) call(job func()) {
	done := make(chan struct{})
	m.enqueue(func() {
		job()
		close(done)
	})
	<-done
}

func warnStorageFailure(op string, err error) {
	if err == nil {
		return
	}
	log.Warn(fmt.Sprintf("persistence: %s failed, continuing best-effort: %v", op, err))
}

// SaveUserOverwrite persists a pending user overwrite write.
func (m *Manager) SaveUserOverwrite(path pathkey.Path, n node.Node, writeID int64) {
	m.enqueue(func() {
		warnStorageFailure("saveUserOverwrite", m.userWrites.SaveOverwrite(path, n, writeID))
	})
}

// SaveUserMerge persists a pending user merge write.
func (m *Manager) SaveUserMerge(path pathkey.Path, children map[string]node.Node, writeID int64) {
	m.enqueue(func() {
		warnStorageFailure("saveUserMerge", m.userWrites.SaveMerge(path, children, writeID))
	})
}

// RemoveUserWrite deletes a persisted user write by id.
func (m *Manager) RemoveUserWrite(writeID int64) {
	m.enqueue(func() {
		warnStorageFailure("removeUserWrite", m.userWrites.Remove(writeID))
	})
}

// GetUserWrites blocks until every write submitted before this call has
// landed, then returns every persisted user write sorted by id.
func (m *Manager) GetUserWrites() ([]UserWriteRecord, error) {
	var records []UserWriteRecord
	var err error
	m.call(func() {
		records, err = m.userWrites.LoadAll()
	})
	if err != nil {
		warnStorageFailure("getUserWrites", err)
		return nil, err
	}
	return records, nil
}

// ApplyUserWrite integrates a confirmed user overwrite: if some ancestor
// has an active default listen, the write is now canonical locally, so it
// overwrites the server cache directly and marks that path complete.
func (m *Manager) ApplyUserWrite(n node.Node, path pathkey.Path, lastUse int64) {
	m.enqueue(func() {
		if !m.queries.HasActiveDefault(path) {
			return
		}
		if err := m.serverCache.Overwrite(n, path, false); err != nil {
			warnStorageFailure("applyUserWrite", err)
			return
		}
		warnStorageFailure("applyUserWrite.ensureComplete", m.queries.EnsureComplete(path, lastUse))
	})
}

// ApplyUserMerge integrates a confirmed user merge the same way
// ApplyUserWrite integrates an overwrite.
func (m *Manager) ApplyUserMerge(children map[string]node.Node, path pathkey.Path, lastUse int64) {
	m.enqueue(func() {
		if !m.queries.HasActiveDefault(path) {
			return
		}
		if err := m.serverCache.Merge(children, path); err != nil {
			warnStorageFailure("applyUserMerge", err)
			return
		}
		warnStorageFailure("applyUserMerge.ensureComplete", m.queries.EnsureComplete(path, lastUse))
	})
}

// GetServerCache resolves the best locally known cache for q: the full
// subtree if q is known complete (narrowed to its persisted tracked keys
// when q is filtered), else only the keys known complete among its
// children.
func (m *Manager) GetServerCache(q query.Query) optree.CacheNode {
	var result optree.CacheNode
	m.call(func() {
		result = m.getServerCacheLocked(q)
	})
	return result
}

func (m *Manager) getServerCacheLocked(q query.Query) optree.CacheNode {
	if m.queries.IsComplete(q) {
		if !q.LoadsAllData() {
			tq, ok := m.queries.Find(q)
			if ok {
				keys, err := m.trackedQueries.LoadKeys(tq.ID)
				if err != nil {
					warnStorageFailure("getServerCache.loadKeys", err)
					return optree.CacheNode{Node: node.Empty}
				}
				n, err := m.serverCache.GetForKeys(keys, q.Path)
				if err != nil {
					warnStorageFailure("getServerCache.getForKeys", err)
					return optree.CacheNode{Node: node.Empty}
				}
				return optree.CacheNode{Node: n, FullyInitialized: true, Filtered: true}
			}
		}
		n, err := m.serverCache.GetAtPath(q.Path)
		if err != nil {
			warnStorageFailure("getServerCache.getAtPath", err)
			return optree.CacheNode{Node: node.Empty}
		}
		return optree.CacheNode{Node: n, FullyInitialized: true}
	}

	children, err := m.queries.KnownCompleteChildren(q.Path)
	if err != nil {
		warnStorageFailure("getServerCache.knownCompleteChildren", err)
		return optree.CacheNode{Node: node.Empty}
	}
	n, err := m.serverCache.GetForKeys(children, q.Path)
	if err != nil {
		warnStorageFailure("getServerCache.getForKeys", err)
		return optree.CacheNode{Node: node.Empty}
	}
	return optree.CacheNode{Node: n}
}

// ApplyServerOverwrite persists a server snapshot for q, marks it complete,
// and runs a size-triggered prune check.
func (m *Manager) ApplyServerOverwrite(n node.Node, q query.Query, lastUse int64) {
	m.enqueue(func() {
		if err := m.serverCache.Overwrite(n, q.Path, !q.LoadsAllData()); err != nil {
			warnStorageFailure("applyServerOverwrite", err)
			return
		}
		warnStorageFailure("applyServerOverwrite.setComplete", m.queries.SetComplete(q, lastUse))
		m.pruneCheck()
	})
}

// ApplyServerMerge persists a server merge at path and runs a
// size-triggered prune check.
func (m *Manager) ApplyServerMerge(children map[string]node.Node, path pathkey.Path) {
	m.enqueue(func() {
		warnStorageFailure("applyServerMerge", m.serverCache.Merge(children, path))
		m.pruneCheck()
	})
}

// SetQueryComplete marks q's tracked entry complete.
func (m *Manager) SetQueryComplete(q query.Query, lastUse int64) {
	m.enqueue(func() {
		warnStorageFailure("setQueryComplete", m.queries.SetComplete(q, lastUse))
	})
}

// SetQueryActive marks q active, creating its tracked entry if needed.
func (m *Manager) SetQueryActive(q query.Query, lastUse int64) {
	m.enqueue(func() {
		warnStorageFailure("setQueryActive", m.queries.SetActive(q, lastUse))
	})
}

// SetQueryInactive marks q inactive.
func (m *Manager) SetQueryInactive(q query.Query, lastUse int64) {
	m.enqueue(func() {
		warnStorageFailure("setQueryInactive", m.queries.SetInactive(q, lastUse))
	})
}

// SetTrackedQueryKeys replaces the persisted completed-child-key set for
// q's tracked entry.
func (m *Manager) SetTrackedQueryKeys(q query.Query, keys []string) {
	m.enqueue(func() {
		tq, ok := m.queries.Find(q)
		if !ok {
			return
		}
		warnStorageFailure("setTrackedQueryKeys", m.trackedQueries.SaveKeys(tq.ID, keys))
	})
}

// UpdateTrackedQueryKeys adds and removes names from q's persisted
// completed-child-key set.
func (m *Manager) UpdateTrackedQueryKeys(q query.Query, added, removed []string) {
	m.enqueue(func() {
		tq, ok := m.queries.Find(q)
		if !ok {
			return
		}
		existing, err := m.trackedQueries.LoadKeys(tq.ID)
		if err != nil {
			warnStorageFailure("updateTrackedQueryKeys.load", err)
			return
		}
		set := make(map[string]bool, len(existing))
		for _, k := range existing {
			set[k] = true
		}
		for _, k := range removed {
			delete(set, k)
		}
		for _, k := range added {
			set[k] = true
		}
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		warnStorageFailure("updateTrackedQueryKeys.save", m.trackedQueries.SaveKeys(tq.ID, keys))
	})
}

// pruneCheck implements the size-triggered pruning protocol. It must only
// be called from the worker goroutine.
func (m *Manager) pruneCheck() {
	m.serverUpdatesSincePruneCheck++
	if !m.policy.ShouldCheckSize(m.serverUpdatesSincePruneCheck) {
		return
	}
	m.serverUpdatesSincePruneCheck = 0
	m.recursivePruneCheck()
}

func (m *Manager) recursivePruneCheck() {
	size, err := m.serverCache.EstimatedSize()
	if err != nil {
		warnStorageFailure("recursivePruneCheck.estimatedSize", err)
		return
	}
	if !m.policy.ShouldPrune(size, m.queries.NumPrunableQueries()) {
		return
	}

	forest, err := m.queries.PruneOld(m.policy)
	if err != nil {
		warnStorageFailure("recursivePruneCheck.pruneOld", err)
		return
	}
	if !forest.PrunesAnything() {
		return
	}
	if err := m.serverCache.PruneCache(forest, pathkey.Empty); err != nil {
		warnStorageFailure("recursivePruneCheck.pruneCache", err)
		return
	}
	m.pruneCycles++
	m.prunedQueries += int64(forest.NumPruned())
	m.recursivePruneCheck()
}

// Close drains any queued work, stops the worker, and closes all three
// stores.
func (m *Manager) Close() error {
	close(m.stopCh)
	<-m.done

	var firstErr error
	for _, closer := range []func() error{m.serverCache.Close, m.userWrites.Close, m.trackedQueries.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
