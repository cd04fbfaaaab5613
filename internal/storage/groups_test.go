package storage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/lindqvist/kvitto/internal/model"
)

func seedGroupFixtures(t *testing.T, store *SQLiteStorage) {
	t.Helper()
	ctx := context.Background()

	// User rows: two names grouped as Mjölk
	for _, name := range []string{"Mjölk 1L", "Mjölk 1,5L"} {
		err := store.CreateMapping(ctx, &model.ProductMapping{
			UserID:       "user-1",
			OriginalName: name,
			MappedName:   "Mjölk",
			Category:     "mejeri",
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// Global rows: one joins the Mjölk group, one is shadowed by a user row
	err := store.CreateGlobalMapping(ctx, &model.GlobalProductMapping{
		OriginalName: "Mjölk Eko",
		MappedName:   "Mjölk",
		Category:     "drycker",
	})
	if err != nil {
		t.Fatalf("Create global failed: %v", err)
	}
	err = store.CreateGlobalMapping(ctx, &model.GlobalProductMapping{
		OriginalName: "Mjölk 1L",
		MappedName:   "Dryck",
		Category:     "drycker",
	})
	if err != nil {
		t.Fatalf("Create global failed: %v", err)
	}

	items := []model.ReceiptLineItem{
		{UserID: "user-1", Name: "Mjölk 1L", Price: 15.9, Quantity: 2, Category: "mejeri", PurchasedAt: time.Now()},
		{UserID: "user-1", Name: "Mjölk Eko", Price: 19.5, Quantity: 1, Category: "mejeri", PurchasedAt: time.Now()},
	}
	if err := store.SaveLineItems(ctx, items); err != nil {
		t.Fatalf("SaveLineItems failed: %v", err)
	}
}

func TestListGroups(t *testing.T) {
	store := newTestStorage(t)
	seedGroupFixtures(t, store)

	groups, err := store.ListGroups(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}

	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d: %+v", len(groups), groups)
	}

	g := groups[0]
	if g.Name != "Mjölk" {
		t.Errorf("Group name = %q", g.Name)
	}
	// The shadowed global row must not create a Dryck group or duplicate
	// "Mjölk 1L".
	if len(g.Members) != 3 {
		t.Errorf("Members = %v, want 3 entries", g.Members)
	}
	if g.Source != model.GroupSourceMixed {
		t.Errorf("Source = %q, want mixed", g.Source)
	}
	if g.Category != "mejeri" {
		t.Errorf("Category = %q, want user-declared mejeri", g.Category)
	}

	wantSpend := 15.9*2 + 19.5*1
	if math.Abs(g.TotalSpend-wantSpend) > 1e-9 {
		t.Errorf("TotalSpend = %v, want %v", g.TotalSpend, wantSpend)
	}
	if g.PurchaseCount != 2 {
		t.Errorf("PurchaseCount = %d, want 2", g.PurchaseCount)
	}
}

func TestListGroups_OverrideCategory(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	global := &model.GlobalProductMapping{
		OriginalName: "Läsk 33cl",
		MappedName:   "Läsk",
		Category:     "drycker",
	}
	if err := store.CreateGlobalMapping(ctx, global); err != nil {
		t.Fatalf("Create global failed: %v", err)
	}

	err := store.SaveOverride(ctx, &model.UserGlobalOverride{
		UserID:           "user-1",
		GlobalMappingID:  global.ID,
		OverrideCategory: "godis",
	})
	if err != nil {
		t.Fatalf("SaveOverride failed: %v", err)
	}

	groups, err := store.ListGroups(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	if groups[0].Category != "godis" {
		t.Errorf("Category = %q, want override godis", groups[0].Category)
	}
	if groups[0].Source != model.GroupSourceGlobal {
		t.Errorf("Source = %q, want global", groups[0].Source)
	}

	// Another user without the override sees the shared default.
	other, err := store.ListGroups(ctx, "user-2")
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if other[0].Category != "drycker" {
		t.Errorf("Other user category = %q, want drycker", other[0].Category)
	}
}

func TestListGroups_ToleratesDegenerateRows(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.CreateMapping(ctx, &model.ProductMapping{
		UserID:       "user-1",
		OriginalName: "Smör",
		MappedName:   "  ",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	groups, err := store.ListGroups(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListGroups must tolerate degenerate rows, got %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("Degenerate row produced a group: %+v", groups)
	}
}

func TestGetObservedNames(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	items := []model.ReceiptLineItem{
		{UserID: "user-1", Name: "Bananer", Price: 12, Quantity: 1},
		{UserID: "user-1", Name: "Bananer", Price: 14, Quantity: 1},
		{UserID: "user-1", Name: "Ägg", Price: 32, Quantity: 1},
	}
	if err := store.SaveLineItems(ctx, items); err != nil {
		t.Fatalf("SaveLineItems failed: %v", err)
	}

	counts, err := store.GetObservedNames(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetObservedNames failed: %v", err)
	}

	if len(counts) != 2 {
		t.Fatalf("Expected 2 names, got %d", len(counts))
	}
	if counts[0].Name != "Bananer" || counts[0].Count != 2 {
		t.Errorf("First entry = %+v, want Bananer x2", counts[0])
	}
}
