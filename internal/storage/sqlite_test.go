package storage

import (
	"context"
	"testing"

	"github.com/lindqvist/kvitto/internal/model"
)

// newTestStorage creates a migrated in-memory database for tests.
func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test storage: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store := newTestStorage(t)

	var version int
	if err := store.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("Schema version = %d, want %d", version, ExpectedSchemaVersion)
	}

	// Migrate must be idempotent
	if err := store.Migrate(context.Background()); err != nil {
		t.Errorf("Second migrate failed: %v", err)
	}
}

func TestSQLiteStorage_MappingCache(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mapping := &model.ProductMapping{
		UserID:       "user-1",
		OriginalName: "Mjölk 1L",
		MappedName:   "Mjölk",
		Category:     "mejeri",
	}
	if err := store.CreateMapping(ctx, mapping); err != nil {
		t.Fatalf("Failed to create mapping: %v", err)
	}

	// Clear cache (simulate fresh start)
	store.cacheMutex.Lock()
	store.mappingCache = make(map[string]*model.ProductMapping)
	store.cacheMutex.Unlock()

	if err := store.WarmMappingCache(ctx, "user-1"); err != nil {
		t.Fatalf("Failed to warm cache: %v", err)
	}

	cached := store.getCachedMapping("user-1", "Mjölk 1L")
	if cached == nil {
		t.Fatal("Mapping not in cache after warming")
	}
	if cached.MappedName != "Mjölk" {
		t.Errorf("Cached mapped name = %q, want %q", cached.MappedName, "Mjölk")
	}

	// Cache is per-user
	if other := store.getCachedMapping("user-2", "Mjölk 1L"); other != nil {
		t.Errorf("Cache leaked across users: %+v", other)
	}
}
