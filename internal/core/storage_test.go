package core

import (
	"path/filepath"
	"testing"

	"patientcore/internal/infra/persistence/memory"
	"patientcore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	t.Setenv("PATIENTCORE_STORAGE_DRIVER", string(StorageMemory))
	store, err := OpenPersistentStore(nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	t.Setenv("PATIENTCORE_STORAGE_DRIVER", string(StorageSQLite))
	t.Setenv("PATIENTCORE_SQLITE_PATH", path)
	store, err := OpenPersistentStore(NewDefaultRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	sq, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	t.Cleanup(func() { _ = sq.DB().Close() })
	if sq.Path() != path {
		t.Fatalf("expected path %s, got %s", path, sq.Path())
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv("PATIENTCORE_STORAGE_DRIVER", "tape")
	if _, err := OpenPersistentStore(nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
