package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/nodetree/syncdb/pkg/log"
)

// BoltDB is one underlying bbolt database file shared by every store
// opened against it; the database closes once every store's Close has
// been called.
type BoltDB struct {
	db *bolt.DB

	mu   sync.Mutex
	refs int
}

// OpenBoltDB opens (creating if necessary) the bbolt database at path.
func OpenBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open database: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// Store opens (creating its bucket if necessary) the named store.
func (d *BoltDB) Store(name string) (*BoltAdapter, error) {
	bucket := []byte(name)
	err := d.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to create bucket %s: %w", name, err)
	}

	d.mu.Lock()
	d.refs++
	d.mu.Unlock()

	return &BoltAdapter{parent: d, bucket: bucket}, nil
}

func (d *BoltDB) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs--
	if d.refs > 0 {
		return nil
	}
	return d.db.Close()
}

// BoltAdapter implements Adapter against one bucket of a shared BoltDB.
type BoltAdapter struct {
	parent *BoltDB
	bucket []byte
}

var _ Adapter = (*BoltAdapter)(nil)

func (a *BoltAdapter) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := a.parent.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(a.bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return value, value != nil, nil
}

func (a *BoltAdapter) GetAll(prefix string) ([]Entry, error) {
	var entries []Entry
	err := a.parent.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(a.bucket).Cursor()
		p := []byte(prefix)
		for k, v := seekPrefix(c, p); k != nil && hasPrefix(k, p); k, v = c.Next() {
			entries = append(entries, Entry{Key: string(k), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: getAll %s: %w", prefix, err)
	}
	return entries, nil
}

func (a *BoltAdapter) Set(key string, value []byte) error {
	err := a.parent.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(a.bucket)
		if value == nil {
			return b.Delete([]byte(key))
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}

func (a *BoltAdapter) Remove(keys []string) error {
	err := a.parent.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(a.bucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage: remove %d keys: %w", len(keys), err)
	}
	return nil
}

func (a *BoltAdapter) RemovePrefixed(prefix string) error {
	err := a.parent.db.Update(func(tx *bolt.Tx) error {
		return removePrefixedTx(tx, a.bucket, prefix)
	})
	if err != nil {
		return fmt.Errorf("storage: removePrefixed %s: %w", prefix, err)
	}
	return nil
}

func (a *BoltAdapter) Clear() error {
	err := a.parent.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(a.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(a.bucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("storage: clear: %w", err)
	}
	return nil
}

func (a *BoltAdapter) Keys(prefix string) ([]string, error) {
	var keys []string
	err := a.parent.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(a.bucket).Cursor()
		p := []byte(prefix)
		for k, _ := seekPrefix(c, p); k != nil && hasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: keys %s: %w", prefix, err)
	}
	return keys, nil
}

func (a *BoltAdapter) Count() (int, error) {
	var n int
	err := a.parent.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(a.bucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("storage: count: %w", err)
	}
	return n, nil
}

// EstimatedSize walks every entry, approximating each key's cost as
// len(key)/2 bytes and its value's cost via estimateValueSize, matching
// the per-entry heuristic the original server-cache store uses.
func (a *BoltAdapter) EstimatedSize() (int64, error) {
	var total float64
	err := a.parent.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(a.bucket).ForEach(func(k, v []byte) error {
			total += float64(len(k)) / 2
			total += estimateValueSize(v)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("storage: estimatedSize: %w", err)
	}
	return int64(total), nil
}

func (a *BoltAdapter) WriteBatch() Batch {
	return &boltBatch{adapter: a, id: uuid.NewString()}
}

func (a *BoltAdapter) Close() error {
	return a.parent.release()
}

type boltOp struct {
	kind   byte // 's' set, 'r' remove, 'p' removePrefixed
	key    string
	value  []byte
	prefix string
}

type boltBatch struct {
	adapter *BoltAdapter
	ops     []boltOp
	id      string
}

func (b *boltBatch) Set(key string, value []byte) {
	b.ops = append(b.ops, boltOp{kind: 's', key: key, value: value})
}

func (b *boltBatch) Remove(keys []string) {
	for _, k := range keys {
		b.ops = append(b.ops, boltOp{kind: 'r', key: k})
	}
}

func (b *boltBatch) RemovePrefixed(prefix string) {
	b.ops = append(b.ops, boltOp{kind: 'p', prefix: prefix})
}

// Run executes every queued mutation inside one bolt.Tx, so either all of
// it lands or none does.
func (b *boltBatch) Run() error {
	err := b.adapter.parent.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.adapter.bucket)
		for _, op := range b.ops {
			switch op.kind {
			case 's':
				if op.value == nil {
					if err := bucket.Delete([]byte(op.key)); err != nil {
						return err
					}
					continue
				}
				if err := bucket.Put([]byte(op.key), op.value); err != nil {
					return err
				}
			case 'r':
				if err := bucket.Delete([]byte(op.key)); err != nil {
					return err
				}
			case 'p':
				if err := removePrefixedTx(tx, b.adapter.bucket, op.prefix); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		log.WithBatchID(b.id).Warn().Err(err).Msg("batch run failed")
		return fmt.Errorf("storage: batch run: %w", err)
	}
	log.WithBatchID(b.id).Debug().Int("ops", len(b.ops)).Msg("batch run committed")
	return nil
}

func removePrefixedTx(tx *bolt.Tx, bucket []byte, prefix string) error {
	b := tx.Bucket(bucket)
	c := b.Cursor()
	p := []byte(prefix)
	var toDelete [][]byte
	for k, _ := seekPrefix(c, p); k != nil && hasPrefix(k, p); k, _ = c.Next() {
		toDelete = append(toDelete, append([]byte(nil), k...))
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func seekPrefix(c *bolt.Cursor, prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return c.First()
	}
	return c.Seek(prefix)
}

func hasPrefix(key, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(key) < len(prefix) {
		return false
	}
	for i, c := range prefix {
		if key[i] != c {
			return false
		}
	}
	return true
}

// estimateValueSize decodes v as JSON and sizes it the way the spec's
// accounting does: numbers cost 8 bytes, strings their length, booleans
// half a byte, and arrays/objects the recursive sum of their elements. A
// value that fails to decode (never expected in practice) falls back to
// its raw byte length.
func estimateValueSize(v []byte) float64 {
	var decoded interface{}
	if err := json.Unmarshal(v, &decoded); err != nil {
		return float64(len(v))
	}
	return jsonValueSize(decoded)
}

func jsonValueSize(v interface{}) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return 8
	case string:
		return float64(len(val))
	case bool:
		return 0.5
	case []interface{}:
		var sum float64
		for _, e := range val {
			sum += jsonValueSize(e)
		}
		return sum
	case map[string]interface{}:
		var sum float64
		for _, e := range val {
			sum += jsonValueSize(e)
		}
		return sum
	default:
		return 0
	}
}
