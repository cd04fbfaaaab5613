package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS product_mappings (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					original_name TEXT NOT NULL,
					mapped_name TEXT,
					category TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_product_mappings_user ON product_mappings(user_id)`,
				`CREATE INDEX idx_product_mappings_user_name ON product_mappings(user_id, original_name)`,
				`CREATE INDEX idx_product_mappings_group ON product_mappings(user_id, mapped_name)`,

				`CREATE TABLE IF NOT EXISTS global_product_mappings (
					id TEXT PRIMARY KEY,
					original_name TEXT NOT NULL,
					mapped_name TEXT,
					category TEXT
				)`,
				`CREATE INDEX idx_global_mappings_name ON global_product_mappings(original_name)`,
				`CREATE INDEX idx_global_mappings_group ON global_product_mappings(mapped_name)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add user overrides on global mappings",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS user_global_overrides (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					global_mapping_id TEXT NOT NULL,
					override_category TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, global_mapping_id),
					FOREIGN KEY (global_mapping_id) REFERENCES global_product_mappings(id)
				)
			`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Add ignored merge suggestions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS ignored_merge_suggestions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					products TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, products)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_ignored_suggestions_user ON ignored_merge_suggestions(user_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Add receipt line items for group aggregates",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS receipt_line_items (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					receipt_id TEXT,
					name TEXT NOT NULL,
					price REAL NOT NULL DEFAULT 0,
					quantity REAL NOT NULL DEFAULT 1,
					category TEXT,
					purchased_at DATETIME
				)`,
				`CREATE INDEX IF NOT EXISTS idx_line_items_user ON receipt_line_items(user_id)`,
				`CREATE INDEX IF NOT EXISTS idx_line_items_user_name ON receipt_line_items(user_id, name)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
