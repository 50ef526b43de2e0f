package storage

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Collection stores JSON-encoded values of one type in a single bucket.
type Collection[T any] struct {
	backend Backend
	bucket  string
}

// NewCollection creates the bucket if needed and returns a collection over it.
func NewCollection[T any](backend Backend, bucket string) (*Collection[T], error) {
	err := backend.Update(func(tx Tx) error {
		_, err := tx.CreateBucket(bucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Collection[T]{backend: backend, bucket: bucket}, nil
}

// Put stores v under key, replacing any existing value.
func (c *Collection[T]) Put(key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return c.backend.Update(func(tx Tx) error {
		bkt, err := c.open(tx)
		if err != nil {
			return err
		}
		return bkt.Put(key, data)
	})
}

// Create stores v under key unless the key is already taken, in which case
// ErrExists is returned.
func (c *Collection[T]) Create(key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return c.backend.Update(func(tx Tx) error {
		bkt, err := c.open(tx)
		if err != nil {
			return err
		}
		if bkt.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrExists, key)
		}
		return bkt.Put(key, data)
	})
}

// Get returns the value stored under key, or ErrNotFound.
func (c *Collection[T]) Get(key string) (T, error) {
	var v T
	err := c.backend.View(func(tx Tx) error {
		bkt, err := c.open(tx)
		if err != nil {
			return err
		}
		data := bkt.Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return decode(data, &v)
	})
	return v, err
}

// Modify loads the value under key, applies fn and stores the result in one
// transaction. If fn returns an error nothing is written.
func (c *Collection[T]) Modify(key string, fn func(v *T) error) (T, error) {
	var v T
	err := c.backend.Update(func(tx Tx) error {
		bkt, err := c.open(tx)
		if err != nil {
			return err
		}
		data := bkt.Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err := decode(data, &v); err != nil {
			return err
		}
		if err := fn(&v); err != nil {
			return err
		}
		updated, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return bkt.Put(key, updated)
	})
	return v, err
}

// All returns every value in key order.
func (c *Collection[T]) All() ([]T, error) {
	var out []T
	err := c.backend.View(func(tx Tx) error {
		bkt, err := c.open(tx)
		if err != nil {
			return err
		}
		return bkt.ForEach(func(_ string, data []byte) error {
			var v T
			if err := decode(data, &v); err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
	})
	return out, err
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Collection[T]) Delete(key string) error {
	return c.backend.Update(func(tx Tx) error {
		bkt, err := c.open(tx)
		if err != nil {
			return err
		}
		return bkt.Delete(key)
	})
}

func (c *Collection[T]) open(tx Tx) (Bucket, error) {
	bkt := tx.Bucket(c.bucket)
	if bkt == nil {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, c.bucket)
	}
	return bkt, nil
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}
