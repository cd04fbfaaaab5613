package storage

import (
	"context"
	"testing"

	"github.com/lindqvist/kvitto/internal/model"
)

func TestAddIgnoredSuggestion_Idempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first := &model.IgnoredSuggestion{
		UserID:   "user-1",
		Products: []string{"Mjölk 1L", "Mjölk"},
	}
	if err := store.AddIgnoredSuggestion(ctx, first); err != nil {
		t.Fatalf("First ignore failed: %v", err)
	}

	// Same member set in a different order: same canonical key.
	again := &model.IgnoredSuggestion{
		UserID:   "user-1",
		Products: []string{"Mjölk", "Mjölk 1L"},
	}
	if err := store.AddIgnoredSuggestion(ctx, again); err != nil {
		t.Errorf("Repeated ignore should succeed, got %v", err)
	}

	keys, err := store.GetIgnoredKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetIgnoredKeys failed: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("Expected 1 ignored key, got %d", len(keys))
	}
	if !keys[model.ClusterKey([]string{"Mjölk", "Mjölk 1L"})] {
		t.Error("Canonical key missing from ignore set")
	}
}

func TestGetIgnoredKeys_ScopedToUser(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.AddIgnoredSuggestion(ctx, &model.IgnoredSuggestion{
		UserID:   "user-1",
		Products: []string{"Te", "Te Earl Grey"},
	})
	if err != nil {
		t.Fatalf("Ignore failed: %v", err)
	}

	keys, err := store.GetIgnoredKeys(ctx, "user-2")
	if err != nil {
		t.Fatalf("GetIgnoredKeys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Other user sees %d ignored keys, want 0", len(keys))
	}
}

func TestDeleteSupersededIgnores(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Ignore one cluster, then map everything in it.
	err := store.AddIgnoredSuggestion(ctx, &model.IgnoredSuggestion{
		UserID:   "user-1",
		Products: []string{"Mjölk 1L", "Mjölk"},
	})
	if err != nil {
		t.Fatalf("Ignore failed: %v", err)
	}
	// This one stays: one member is still unmapped.
	err = store.AddIgnoredSuggestion(ctx, &model.IgnoredSuggestion{
		UserID:   "user-1",
		Products: []string{"Ost", "Prästost"},
	})
	if err != nil {
		t.Fatalf("Ignore failed: %v", err)
	}

	for _, name := range []string{"Mjölk 1L", "Mjölk", "Ost"} {
		err := store.CreateMapping(ctx, &model.ProductMapping{
			UserID:       "user-1",
			OriginalName: name,
			MappedName:   "Mjölk",
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	deleted, err := store.DeleteSupersededIgnores(ctx, "user-1")
	if err != nil {
		t.Fatalf("DeleteSupersededIgnores failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Deleted %d rows, want 1", deleted)
	}

	keys, err := store.GetIgnoredKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetIgnoredKeys failed: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("Expected 1 surviving key, got %d", len(keys))
	}
	if !keys[model.ClusterKey([]string{"Ost", "Prästost"})] {
		t.Error("Wrong ignore row deleted")
	}
}
