package storage

import (
	"context"
	"testing"

	"github.com/lindqvist/kvitto/internal/model"
)

func seedGlobalGroup(t *testing.T, store *SQLiteStorage, names ...string) {
	t.Helper()
	ctx := context.Background()

	for _, name := range names {
		err := store.CreateGlobalMapping(ctx, &model.GlobalProductMapping{
			OriginalName: name,
			MappedName:   "Mjölk",
			Category:     "mejeri",
		})
		if err != nil {
			t.Fatalf("Create global failed: %v", err)
		}
	}
}

func TestAdminRenameGlobalGroup(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedGlobalGroup(t, store, "Mjölk 1L", "Mjölk 1,5L", "Mjölk Eko")

	result, err := store.AdminRenameGlobalGroup(ctx, "Mjölk", "Mejeri")
	if err != nil {
		t.Fatalf("AdminRenameGlobalGroup failed: %v", err)
	}
	if result.Updated != 3 || result.Failed != 0 {
		t.Errorf("Result = %+v, want 3 updated and 0 failed", result)
	}

	mappings, err := store.GetGlobalMappings(ctx)
	if err != nil {
		t.Fatalf("GetGlobalMappings failed: %v", err)
	}
	for _, m := range mappings {
		if m.MappedName != "Mejeri" {
			t.Errorf("Row %q still carries %q", m.OriginalName, m.MappedName)
		}
	}
}

func TestAdminRenameGlobalGroup_FailureLeavesRowsUntouched(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedGlobalGroup(t, store, "Mjölk 1L", "Mjölk 1,5L")

	// The rename is a single statement, so a failure mid-flight must not
	// leave a half-renamed group behind.
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.AdminRenameGlobalGroup(canceled, "Mjölk", "Mejeri"); err == nil {
		t.Fatal("Expected rename with canceled context to fail")
	}

	mappings, err := store.GetGlobalMappings(ctx)
	if err != nil {
		t.Fatalf("GetGlobalMappings failed: %v", err)
	}
	for _, m := range mappings {
		if m.MappedName != "Mjölk" {
			t.Errorf("Row %q renamed to %q despite the failure", m.OriginalName, m.MappedName)
		}
	}
}

func TestAdminRenameGlobalGroup_NoMatchingRows(t *testing.T) {
	store := newTestStorage(t)

	result, err := store.AdminRenameGlobalGroup(context.Background(), "Okänd", "Annat")
	if err != nil {
		t.Fatalf("AdminRenameGlobalGroup failed: %v", err)
	}
	if result.Updated != 0 || result.Succeeded != 0 {
		t.Errorf("Result = %+v, want no rows touched", result)
	}
}
