package storage

import (
	"path/filepath"
	"testing"
)

func TestBboltBackend(t *testing.T) {
	backendTestSuite(t, func(t *testing.T) Backend {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		backend, err := NewBboltBackend(dbPath)
		if err != nil {
			t.Fatalf("failed to create backend: %v", err)
		}
		t.Cleanup(func() { backend.Close() })

		return backend
	})
}

func TestBboltBackend_Persists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "jobs.db")

	backend, err := NewBboltBackend(dbPath)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	backend.Update(func(tx Tx) error {
		bkt, _ := tx.CreateBucket("jobs")
		return bkt.Put("a", []byte("1"))
	})
	backend.Close()

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	reopened.View(func(tx Tx) error {
		if got := tx.Bucket("jobs").Get("a"); string(got) != "1" {
			t.Errorf("Get after reopen = %q, want 1", got)
		}
		return nil
	})
}
