/*
Package trackedquery implements TrackedQueryManager: the in-memory index of
which queries have ever been listened on, whether the server has delivered
a complete snapshot for them, and when they were last used — the
bookkeeping LRU pruning reads to decide what to evict from the server
cache.
*/
package trackedquery

import (
	"math"
	"sort"

	"github.com/nodetree/syncdb/pkg/cachepolicy"
	"github.com/nodetree/syncdb/pkg/pathkey"
	"github.com/nodetree/syncdb/pkg/pruneforest"
	"github.com/nodetree/syncdb/pkg/query"
)

// TrackedQuery is one entry in the manager's index.
type TrackedQuery struct {
	ID       int64       `json:"id"`
	Query    query.Query `json:"query"` // normalized: loadsAllData queries become default
	LastUse  int64       `json:"lastUse"` // unix nanos; caller supplies, manager never reads the clock
	Active   bool        `json:"active"`
	Complete bool        `json:"complete"`
}

// Store is the durable backing for the manager's index, mirroring
// spec.md §4.7's TrackedQueryStore key layout.
type Store interface {
	LoadAll() ([]TrackedQuery, error)
	Save(tq TrackedQuery) error
	Delete(id int64) error
	SaveKeys(id int64, keys []string) error
	LoadKeys(id int64) ([]string, error)
}

// Manager is the in-memory tracked-query index, keyed by path then query
// identifier.
type Manager struct {
	store  Store
	byKey  map[string]*TrackedQuery // "path$identifier" -> entry
	nextID int64
}

// Load builds a Manager by reading every persisted tracked query from
// store, flipping any query found active (a crash or unclean shutdown
// left it that way) to inactive with lastUse = now.
func Load(store Store, now int64) (*Manager, error) {
	all, err := store.LoadAll()
	if err != nil {
		return nil, err
	}

	m := &Manager{store: store, byKey: make(map[string]*TrackedQuery)}
	for i := range all {
		tq := all[i]
		if tq.Active {
			tq.Active = false
			tq.LastUse = now
			if err := store.Save(tq); err != nil {
				return nil, err
			}
		}
		cp := tq
		m.byKey[cp.Query.Key()] = &cp
		if cp.ID >= m.nextID {
			m.nextID = cp.ID + 1
		}
	}
	return m, nil
}

func normalize(q query.Query) query.Query {
	return query.ForListening(q)
}

// Find returns the tracked entry for q, if any.
func (m *Manager) Find(q query.Query) (TrackedQuery, bool) {
	tq, ok := m.byKey[normalize(q).Key()]
	if !ok {
		return TrackedQuery{}, false
	}
	return *tq, true
}

// Remove deletes q's entry, if present.
func (m *Manager) Remove(q query.Query) error {
	key := normalize(q).Key()
	tq, ok := m.byKey[key]
	if !ok {
		return nil
	}
	delete(m.byKey, key)
	return m.store.Delete(tq.ID)
}

// SetActive marks q active, creating an entry (at the given lastUse) if
// none exists yet.
func (m *Manager) SetActive(q query.Query, lastUse int64) error {
	return m.setField(q, lastUse, func(tq *TrackedQuery) { tq.Active = true })
}

// SetInactive marks q inactive and stamps lastUse.
func (m *Manager) SetInactive(q query.Query, lastUse int64) error {
	return m.setField(q, lastUse, func(tq *TrackedQuery) { tq.Active = false })
}

// SetComplete marks q's entry complete.
func (m *Manager) SetComplete(q query.Query, lastUse int64) error {
	return m.setField(q, lastUse, func(tq *TrackedQuery) { tq.Complete = true })
}

// SetCompletePath marks every tracked query rooted at or under path
// complete — used when a whole subtree is known to have been fully
// delivered (e.g. an ancestor default listen completed).
func (m *Manager) SetCompletePath(path pathkey.Path, lastUse int64) error {
	for _, tq := range m.byKey {
		if path.Contains(tq.Query.Path) {
			tq.Complete = true
			tq.LastUse = lastUse
			if err := m.store.Save(*tq); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnsureComplete creates or updates the default tracked query at path,
// marking it complete.
func (m *Manager) EnsureComplete(path pathkey.Path, lastUse int64) error {
	return m.SetComplete(query.DefaultAtPath(path), lastUse)
}

// IsComplete reports whether q is known complete: either its own entry is
// complete, or some ancestor path holds a complete default tracked query.
func (m *Manager) IsComplete(q query.Query) bool {
	if tq, ok := m.byKey[normalize(q).Key()]; ok && tq.Complete {
		return true
	}
	for _, tq := range m.byKey {
		if tq.Query.IsDefault() && tq.Complete && tq.Query.Path.Contains(q.Path) {
			return true
		}
	}
	return false
}

// HasActiveDefault reports whether path or any ancestor has an active
// default tracked query.
func (m *Manager) HasActiveDefault(path pathkey.Path) bool {
	for _, tq := range m.byKey {
		if tq.Active && tq.Query.IsDefault() && tq.Query.Path.Contains(path) {
			return true
		}
	}
	return false
}

// KnownCompleteChildren returns the union of: persisted tracked keys for
// complete filtered queries rooted exactly at path, and the names of
// immediate children of path that have a complete default tracked query.
func (m *Manager) KnownCompleteChildren(path pathkey.Path) ([]string, error) {
	seen := make(map[string]bool)
	for _, tq := range m.byKey {
		if !tq.Complete || !tq.Query.Path.Equal(path) {
			continue
		}
		if !tq.Query.IsDefault() {
			keys, err := m.store.LoadKeys(tq.ID)
			if err != nil {
				return nil, err
			}
			for _, k := range keys {
				seen[k] = true
			}
		}
	}
	for _, tq := range m.byKey {
		if tq.Complete && tq.Query.IsDefault() {
			if rel, ok := tq.Query.Path.RelativeTo(path); ok && rel.Len() == 1 {
				front, _ := rel.Front()
				seen[front] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// NumPrunableQueries returns the number of currently inactive tracked
// queries.
func (m *Manager) NumPrunableQueries() int {
	n := 0
	for _, tq := range m.byKey {
		if !tq.Active {
			n++
		}
	}
	return n
}

// ActiveInactiveCounts returns how many tracked queries are currently
// active versus inactive, for metrics reporting.
func (m *Manager) ActiveInactiveCounts() (active, inactive int) {
	for _, tq := range m.byKey {
		if tq.Active {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive
}

// PruneOld evicts the oldest inactive tracked queries per policy, removing
// them from the manager and returning a PruneForest marking their paths
// prune and every remaining tracked query's path keep.
func (m *Manager) PruneOld(policy cachepolicy.Policy) (*pruneforest.PruneForest, error) {
	var prunable []*TrackedQuery
	for _, tq := range m.byKey {
		if !tq.Active {
			prunable = append(prunable, tq)
		}
	}
	sort.Slice(prunable, func(i, j int) bool { return prunable[i].LastUse < prunable[j].LastUse })

	numPrunable := len(prunable)
	byCount := numPrunable - policy.MaxPrunableQueriesToKeep()
	byPercent := int(math.Ceil(float64(numPrunable) * policy.PercentQueriesPruneAtOnce()))
	numToPrune := byCount
	if byPercent > numToPrune {
		numToPrune = byPercent
	}
	if numToPrune < 0 {
		numToPrune = 0
	}
	if numToPrune > numPrunable {
		numToPrune = numPrunable
	}

	forest := pruneforest.New()
	for i, tq := range prunable {
		if i < numToPrune {
			if err := forest.MarkPrune(tq.Query.Path); err != nil {
				return nil, err
			}
			if err := m.Remove(tq.Query); err != nil {
				return nil, err
			}
			continue
		}
		forest.Keep(tq.Query.Path)
	}
	for _, tq := range m.byKey {
		if tq.Active {
			forest.Keep(tq.Query.Path)
		}
	}
	return forest, nil
}

func (m *Manager) setField(q query.Query, lastUse int64, mutate func(*TrackedQuery)) error {
	nq := normalize(q)
	key := nq.Key()
	tq, ok := m.byKey[key]
	if !ok {
		tq = &TrackedQuery{ID: m.nextID, Query: nq}
		m.nextID++
		m.byKey[key] = tq
	}
	tq.LastUse = lastUse
	mutate(tq)
	return m.store.Save(*tq)
}
