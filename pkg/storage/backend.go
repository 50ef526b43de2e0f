package storage

import "errors"

var (
	// ErrNotFound is returned when a key does not exist in a bucket.
	ErrNotFound = errors.New("key not found")
	// ErrExists is returned when creating a key that is already present.
	ErrExists = errors.New("key already exists")
	// ErrBucketNotFound is returned when a bucket has not been created.
	ErrBucketNotFound = errors.New("bucket not found")
)

// Backend is a bucketed key-value store. All access goes through
// transactions: Update is read-write and atomic, View is read-only.
// A non-nil error from an Update callback discards its writes.
type Backend interface {
	Update(fn func(tx Tx) error) error
	View(fn func(tx Tx) error) error
	Close() error
}

// Tx provides access to buckets within a transaction.
type Tx interface {
	// CreateBucket returns the named bucket, creating it if needed.
	// Only valid in Update.
	CreateBucket(name string) (Bucket, error)
	// Bucket returns the named bucket or nil if it does not exist.
	Bucket(name string) Bucket
}

// Bucket provides access to a single bucket within a transaction.
// Values returned by Get and ForEach are only valid inside the transaction.
type Bucket interface {
	Put(key string, value []byte) error
	Get(key string) []byte
	Delete(key string) error
	ForEach(fn func(k string, v []byte) error) error
}

// Open returns a bbolt backend at path, or an in-memory backend when path
// is empty.
func Open(path string) (Backend, error) {
	if path == "" {
		return NewMemoryBackend(), nil
	}
	return NewBboltBackend(path)
}
