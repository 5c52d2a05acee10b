package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryDB implements DB over an in-memory map, used by tests that need a
// DB without a filesystem.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

// Get retrieves a value by key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores a key-value pair outside of a batch.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.data[string(key)] = v
	return nil
}

// Delete removes a key outside of a batch.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix in ascending order.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	p := string(prefix)
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	type kv struct{ k, v []byte }
	snapshot := make([]kv, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, kv{k: []byte(k), v: append([]byte(nil), m.data[k]...)})
	}
	m.mu.RUnlock()

	for _, e := range snapshot {
		if err := fn(e.k, e.v); err != nil {
			return err
		}
	}
	return nil
}

// NewBatch returns a Batch that applies its queued operations to the map
// atomically under a single lock on Commit.
func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m}
}

// Close is a no-op for the in-memory backend.
func (m *MemoryDB) Close() error { return nil }

type memoryOp struct {
	key     []byte
	value   []byte
	deleted bool
}

type memoryBatch struct {
	db  *MemoryDB
	ops []memoryOp
}

func (b *memoryBatch) Put(key, value []byte) {
	k := make([]byte, len(key))
	copy(k, key)
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, memoryOp{key: k, value: v})
}

func (b *memoryBatch) Delete(key []byte) {
	k := make([]byte, len(key))
	copy(k, key)
	b.ops = append(b.ops, memoryOp{key: k, deleted: true})
}

func (b *memoryBatch) Len() int { return len(b.ops) }

func (b *memoryBatch) Commit() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.deleted {
			delete(b.db.data, string(op.key))
		} else {
			b.db.data[string(op.key)] = op.value
		}
	}
	return nil
}
