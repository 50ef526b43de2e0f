package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BboltBackend implements Backend using bbolt
type BboltBackend struct {
	db *bolt.DB
}

// NewBboltBackend opens (or creates) a bbolt database at dbPath.
func NewBboltBackend(dbPath string) (*BboltBackend, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	// A second process holding the file lock would otherwise block forever.
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	return &BboltBackend{db: db}, nil
}

func (b *BboltBackend) Update(fn func(tx Tx) error) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(bboltTx{tx: tx})
	})
}

func (b *BboltBackend) View(fn func(tx Tx) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		return fn(bboltTx{tx: tx})
	})
}

// Close closes the database
func (b *BboltBackend) Close() error {
	return b.db.Close()
}

type bboltTx struct {
	tx *bolt.Tx
}

func (t bboltTx) CreateBucket(name string) (Bucket, error) {
	bkt, err := t.tx.CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return bboltBucket{bkt}, nil
}

func (t bboltTx) Bucket(name string) Bucket {
	bkt := t.tx.Bucket([]byte(name))
	if bkt == nil {
		return nil
	}
	return bboltBucket{bkt}
}

type bboltBucket struct {
	b *bolt.Bucket
}

func (b bboltBucket) Put(key string, value []byte) error {
	return b.b.Put([]byte(key), value)
}

func (b bboltBucket) Get(key string) []byte {
	return b.b.Get([]byte(key))
}

func (b bboltBucket) Delete(key string) error {
	return b.b.Delete([]byte(key))
}

func (b bboltBucket) ForEach(fn func(k string, v []byte) error) error {
	return b.b.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}
