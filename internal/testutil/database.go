// Package testutil provides test utilities for the kvitto project: isolated
// in-memory databases, seed helpers for mappings and line items, and
// transaction scaffolding.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/service"
	"github.com/lindqvist/kvitto/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. It automatically
// handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedMapping("user-1", "Mjölk 1L", "Mjölk", "mejeri")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// SeedMapping inserts a user-scope product mapping or fails the test.
func (db *TestDB) SeedMapping(userID, originalName, mappedName, category string) *model.ProductMapping {
	db.t.Helper()

	mapping := &model.ProductMapping{
		UserID:       userID,
		OriginalName: originalName,
		MappedName:   mappedName,
		Category:     category,
	}
	if err := db.Storage.SaveMapping(context.Background(), mapping); err != nil {
		db.t.Fatalf("failed to seed mapping %q: %v", originalName, err)
	}

	seeded, err := db.Storage.GetMapping(context.Background(), userID, originalName)
	if err != nil {
		db.t.Fatalf("failed to read back seeded mapping %q: %v", originalName, err)
	}
	return seeded
}

// SeedGlobalMapping inserts a global-scope mapping or fails the test.
func (db *TestDB) SeedGlobalMapping(originalName, mappedName, category string) *model.GlobalProductMapping {
	db.t.Helper()

	mapping := &model.GlobalProductMapping{
		OriginalName: originalName,
		MappedName:   mappedName,
		Category:     category,
	}
	if err := db.Storage.CreateGlobalMapping(context.Background(), mapping); err != nil {
		db.t.Fatalf("failed to seed global mapping %q: %v", originalName, err)
	}
	return mapping
}

// SeedLineItems inserts receipt line items or fails the test.
func (db *TestDB) SeedLineItems(userID string, items ...model.ReceiptLineItem) {
	db.t.Helper()

	for i := range items {
		if items[i].UserID == "" {
			items[i].UserID = userID
		}
	}
	if err := db.Storage.SaveLineItems(context.Background(), items); err != nil {
		db.t.Fatalf("failed to seed line items: %v", err)
	}
}

// WithTransaction executes the given function within a database transaction.
// The transaction is automatically rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return nil
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}
