package persistence

import (
	"strings"

	"github.com/nodetree/syncdb/pkg/storage"
)

// fakeAdapter is a minimal in-memory storage.Adapter used to unit test the
// store wrappers without standing up a real bbolt database.
type fakeAdapter struct {
	data map[string][]byte
}

var _ storage.Adapter = (*fakeAdapter)(nil)

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{data: map[string][]byte{}}
}

func (a *fakeAdapter) Get(key string) ([]byte, bool, error) {
	v, ok := a.data[key]
	return v, ok, nil
}

func (a *fakeAdapter) GetAll(prefix string) ([]storage.Entry, error) {
	var out []storage.Entry
	for k, v := range a.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.Entry{Key: k, Value: v})
		}
	}
	return out, nil
}

func (a *fakeAdapter) Set(key string, value []byte) error {
	if value == nil {
		delete(a.data, key)
		return nil
	}
	a.data[key] = value
	return nil
}

func (a *fakeAdapter) Remove(keys []string) error {
	for _, k := range keys {
		delete(a.data, k)
	}
	return nil
}

func (a *fakeAdapter) RemovePrefixed(prefix string) error {
	for k := range a.data {
		if strings.HasPrefix(k, prefix) {
			delete(a.data, k)
		}
	}
	return nil
}

func (a *fakeAdapter) Clear() error {
	a.data = map[string][]byte{}
	return nil
}

func (a *fakeAdapter) Keys(prefix string) ([]string, error) {
	var out []string
	for k := range a.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (a *fakeAdapter) Count() (int, error) {
	return len(a.data), nil
}

func (a *fakeAdapter) EstimatedSize() (int64, error) {
	var total int64
	for k, v := range a.data {
		total += int64(len(k)) + int64(len(v))
	}
	return total, nil
}

func (a *fakeAdapter) WriteBatch() storage.Batch {
	return &fakeBatch{adapter: a}
}

func (a *fakeAdapter) Close() error { return nil }

type fakeOp struct {
	kind   byte
	key    string
	value  []byte
	keys   []string
	prefix string
}

type fakeBatch struct {
	adapter *fakeAdapter
	ops     []fakeOp
}

var _ storage.Batch = (*fakeBatch)(nil)

func (b *fakeBatch) Set(key string, value []byte) {
	b.ops = append(b.ops, fakeOp{kind: 's', key: key, value: value})
}

func (b *fakeBatch) Remove(keys []string) {
	b.ops = append(b.ops, fakeOp{kind: 'r', keys: keys})
}

func (b *fakeBatch) RemovePrefixed(prefix string) {
	b.ops = append(b.ops, fakeOp{kind: 'p', prefix: prefix})
}

func (b *fakeBatch) Run() error {
	for _, op := range b.ops {
		switch op.kind {
		case 's':
			_ = b.adapter.Set(op.key, op.value)
		case 'r':
			_ = b.adapter.Remove(op.keys)
		case 'p':
			_ = b.adapter.RemovePrefixed(op.prefix)
		}
	}
	return nil
}
