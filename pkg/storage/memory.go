package storage

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

var errReadOnly = errors.New("write in read-only transaction")

// MemoryBackend implements Backend using in-memory maps (not persistent).
// Update transactions are serialized and roll back on error.
type MemoryBackend struct {
	buckets map[string]map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryBackend creates a new in-memory storage backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		buckets: make(map[string]map[string][]byte),
	}
}

func (m *MemoryBackend) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{backend: m, writable: true}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *MemoryBackend) View(fn func(tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(&memoryTx{backend: m})
}

// Close is a no-op for memory backend
func (m *MemoryBackend) Close() error {
	return nil
}

// memoryTx runs with the backend lock held, so buckets touch the maps
// directly. undo holds the inverse of every write, newest last.
type memoryTx struct {
	backend  *MemoryBackend
	writable bool
	undo     []func()
}

func (t *memoryTx) CreateBucket(name string) (Bucket, error) {
	if !t.writable {
		return nil, errReadOnly
	}
	if _, ok := t.backend.buckets[name]; !ok {
		t.backend.buckets[name] = make(map[string][]byte)
		t.undo = append(t.undo, func() { delete(t.backend.buckets, name) })
	}
	return &memoryBucket{tx: t, name: name}, nil
}

func (t *memoryTx) Bucket(name string) Bucket {
	if _, ok := t.backend.buckets[name]; !ok {
		return nil
	}
	return &memoryBucket{tx: t, name: name}
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

type memoryBucket struct {
	tx   *memoryTx
	name string
}

func (b *memoryBucket) data() map[string][]byte {
	return b.tx.backend.buckets[b.name]
}

func (b *memoryBucket) Put(key string, value []byte) error {
	if !b.tx.writable {
		return errReadOnly
	}
	data := b.data()
	b.remember(data, key)

	// Copy value to prevent external modifications
	data[key] = slices.Clone(value)
	return nil
}

func (b *memoryBucket) Get(key string) []byte {
	return b.data()[key]
}

func (b *memoryBucket) Delete(key string) error {
	if !b.tx.writable {
		return errReadOnly
	}
	data := b.data()
	b.remember(data, key)
	delete(data, key)
	return nil
}

// ForEach visits keys in sorted order, matching bbolt.
func (b *memoryBucket) ForEach(fn func(k string, v []byte) error) error {
	data := b.data()
	for _, k := range slices.Sorted(maps.Keys(data)) {
		if err := fn(k, data[k]); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBucket) remember(data map[string][]byte, key string) {
	old, existed := data[key]
	b.tx.undo = append(b.tx.undo, func() {
		if existed {
			data[key] = old
		} else {
			delete(data, key)
		}
	})
}
