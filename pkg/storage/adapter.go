package storage

// Entry is one key/value pair returned by GetAll.
type Entry struct {
	Key   string
	Value []byte
}

// Adapter is the key-value contract the core's stores (ServerCacheStore,
// UserWriteStore, TrackedQueryStore) are built on, keyed within one named
// store inside one database. Implementations must serialize batches
// per-store and run them in submission order; Run must be atomic.
type Adapter interface {
	// Get returns the value at key, or (nil, false) if absent.
	Get(key string) ([]byte, bool, error)

	// GetAll returns every entry whose key has the given prefix (or every
	// entry, if prefix is empty).
	GetAll(prefix string) ([]Entry, error)

	// Set writes key=value; value == nil deletes the key.
	Set(key string, value []byte) error

	// Remove deletes the given keys.
	Remove(keys []string) error

	// RemovePrefixed deletes every key with the given prefix.
	RemovePrefixed(prefix string) error

	// Clear deletes every key in the store.
	Clear() error

	// Keys returns every key with the given prefix (or every key, if
	// prefix is empty).
	Keys(prefix string) ([]string, error)

	// Count returns the number of keys in the store.
	Count() (int, error)

	// EstimatedSize returns an approximate byte size of the store's
	// contents: roughly len(key)/2 plus a per-value estimate (numbers as
	// 8 bytes, strings as their length, booleans as 0.5 bytes, arrays
	// summed recursively over their elements).
	EstimatedSize() (int64, error)

	// WriteBatch opens a new atomic batch against this store.
	WriteBatch() Batch

	// Close closes this store's handle. The underlying database closes
	// once every store opened against it has been closed.
	Close() error
}

// Batch accumulates mutations for one atomic Run.
type Batch interface {
	Set(key string, value []byte)
	Remove(keys []string)
	RemovePrefixed(prefix string)
	Run() error
}
