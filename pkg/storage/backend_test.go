package storage

import (
	"bytes"
	"errors"
	"testing"
)

// backendTestSuite runs the shared contract tests against any Backend implementation
func backendTestSuite(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("CreateBucket", func(t *testing.T) {
		backend := newBackend(t)

		err := backend.Update(func(tx Tx) error {
			if _, err := tx.CreateBucket("test"); err != nil {
				return err
			}
			// Idempotent
			_, err := tx.CreateBucket("test")
			return err
		})
		if err != nil {
			t.Fatalf("CreateBucket failed: %v", err)
		}

		backend.View(func(tx Tx) error {
			if tx.Bucket("test") == nil {
				t.Error("Bucket should exist after creation")
			}
			if tx.Bucket("missing") != nil {
				t.Error("Bucket should be nil when never created")
			}
			return nil
		})
	})

	t.Run("PutAndGet", func(t *testing.T) {
		backend := newBackend(t)

		value := []byte("value1")
		err := backend.Update(func(tx Tx) error {
			bkt, err := tx.CreateBucket("test")
			if err != nil {
				return err
			}
			return bkt.Put("key1", value)
		})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		// Mutating the caller's slice must not change the stored value
		value[0] = 'X'

		backend.View(func(tx Tx) error {
			bkt := tx.Bucket("test")
			if got := bkt.Get("key1"); !bytes.Equal(got, []byte("value1")) {
				t.Errorf("Get returned %s, want value1", got)
			}
			if got := bkt.Get("nonexistent"); got != nil {
				t.Errorf("Get should return nil for non-existent key, got %s", got)
			}
			return nil
		})
	})

	t.Run("Delete", func(t *testing.T) {
		backend := newBackend(t)

		backend.Update(func(tx Tx) error {
			bkt, _ := tx.CreateBucket("test")
			return bkt.Put("key1", []byte("value1"))
		})

		err := backend.Update(func(tx Tx) error {
			return tx.Bucket("test").Delete("key1")
		})
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		backend.View(func(tx Tx) error {
			if got := tx.Bucket("test").Get("key1"); got != nil {
				t.Error("Key should not exist after deletion")
			}
			return nil
		})
	})

	t.Run("ForEachSorted", func(t *testing.T) {
		backend := newBackend(t)

		backend.Update(func(tx Tx) error {
			bkt, _ := tx.CreateBucket("test")
			for _, k := range []string{"c", "a", "b"} {
				if err := bkt.Put(k, []byte(k+k)); err != nil {
					return err
				}
			}
			return nil
		})

		var keys []string
		backend.View(func(tx Tx) error {
			return tx.Bucket("test").ForEach(func(k string, v []byte) error {
				if string(v) != k+k {
					t.Errorf("ForEach value for %s = %s", k, v)
				}
				keys = append(keys, k)
				return nil
			})
		})

		if got := len(keys); got != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
			t.Errorf("ForEach visited %v, want [a b c]", keys)
		}
	})

	t.Run("UpdateRollsBackOnError", func(t *testing.T) {
		backend := newBackend(t)

		backend.Update(func(tx Tx) error {
			bkt, _ := tx.CreateBucket("test")
			return bkt.Put("keep", []byte("original"))
		})

		boom := errors.New("boom")
		err := backend.Update(func(tx Tx) error {
			bkt := tx.Bucket("test")
			bkt.Put("keep", []byte("changed"))
			bkt.Put("new", []byte("value"))
			bkt.Delete("keep")
			tx.CreateBucket("scratch")
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update error = %v, want %v", err, boom)
		}

		backend.View(func(tx Tx) error {
			bkt := tx.Bucket("test")
			if got := bkt.Get("keep"); string(got) != "original" {
				t.Errorf("keep = %q after rollback, want original", got)
			}
			if got := bkt.Get("new"); got != nil {
				t.Errorf("new = %q after rollback, want nil", got)
			}
			if tx.Bucket("scratch") != nil {
				t.Error("scratch bucket should not survive rollback")
			}
			return nil
		})
	})

	t.Run("ViewIsReadOnly", func(t *testing.T) {
		backend := newBackend(t)

		backend.Update(func(tx Tx) error {
			_, err := tx.CreateBucket("test")
			return err
		})

		err := backend.View(func(tx Tx) error {
			return tx.Bucket("test").Put("k", []byte("v"))
		})
		if err == nil {
			t.Error("Put in View should fail")
		}
	})
}
