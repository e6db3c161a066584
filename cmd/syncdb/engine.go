package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/nodetree/syncdb/pkg/cachepolicy"
	"github.com/nodetree/syncdb/pkg/persistence"
	"github.com/nodetree/syncdb/pkg/storage"
	"github.com/nodetree/syncdb/pkg/trackedquery"
)

const (
	dbFileName           = "syncdb.db"
	serverCacheBucket    = "server-cache"
	userWritesBucket     = "user-writes"
	trackedQueriesBucket = "tracked-queries"
)

// engine bundles the open database and persistence manager so callers can
// close both in one place.
type engine struct {
	db  *storage.BoltDB
	mgr *persistence.Manager
}

// openEngine opens (creating if necessary) the bbolt database under
// dataDir and builds a persistence.Manager over its three stores.
func openEngine(dataDir string) (*engine, error) {
	db, err := storage.OpenBoltDB(filepath.Join(dataDir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	serverCacheAdapter, err := db.Store(serverCacheBucket)
	if err != nil {
		return nil, fmt.Errorf("open server cache store: %w", err)
	}
	userWritesAdapter, err := db.Store(userWritesBucket)
	if err != nil {
		return nil, fmt.Errorf("open user writes store: %w", err)
	}
	trackedQueriesAdapter, err := db.Store(trackedQueriesBucket)
	if err != nil {
		return nil, fmt.Errorf("open tracked queries store: %w", err)
	}

	tqStore := persistence.NewTrackedQueryStore(trackedQueriesAdapter)
	tqManager, err := trackedquery.Load(tqStore, time.Now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("load tracked queries: %w", err)
	}

	mgr := persistence.New(
		persistence.NewServerCacheStore(serverCacheAdapter),
		persistence.NewUserWriteStore(userWritesAdapter),
		tqStore,
		tqManager,
		cachepolicy.NewLRU(),
	)

	return &engine{db: db, mgr: mgr}, nil
}

// Close closes the persistence manager, which in turn closes every store
// and — once the last reference drops — the underlying bbolt database.
func (e *engine) Close() error {
	return e.mgr.Close()
}
