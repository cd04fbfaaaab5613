package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/service"
)

// GetGlobalMappings retrieves all shared mappings, ordered by name.
func (s *SQLiteStorage) GetGlobalMappings(ctx context.Context) ([]model.GlobalProductMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_name, mapped_name, category
		FROM global_product_mappings
		ORDER BY original_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query global mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.GlobalProductMapping
	for rows.Next() {
		var (
			m          model.GlobalProductMapping
			mappedName sql.NullString
			category   sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.OriginalName, &mappedName, &category); err != nil {
			return nil, fmt.Errorf("failed to scan global mapping: %w", err)
		}
		m.MappedName = mappedName.String
		m.Category = category.String
		mappings = append(mappings, m)
	}

	return mappings, rows.Err()
}

// GetGlobalMappingByID retrieves one shared mapping by row ID.
func (s *SQLiteStorage) GetGlobalMappingByID(ctx context.Context, id string) (*model.GlobalProductMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		m          model.GlobalProductMapping
		mappedName sql.NullString
		category   sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, original_name, mapped_name, category
		FROM global_product_mappings
		WHERE id = ?
	`, id).Scan(&m.ID, &m.OriginalName, &mappedName, &category)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get global mapping: %w", err)
	}

	m.MappedName = mappedName.String
	m.Category = category.String
	return &m, nil
}

// CreateGlobalMapping inserts a shared mapping. Administrative path only;
// callers are expected to have checked policy before reaching storage.
func (s *SQLiteStorage) CreateGlobalMapping(ctx context.Context, mapping *model.GlobalProductMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGlobalMapping(mapping); err != nil {
		return err
	}

	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO global_product_mappings (id, original_name, mapped_name, category)
		VALUES (?, ?, ?, ?)
	`, mapping.ID, mapping.OriginalName, nullIfBlank(mapping.MappedName), nullIfBlank(mapping.Category))
	if err != nil {
		return fmt.Errorf("failed to insert global mapping: %w", err)
	}

	return nil
}

// AdminRenameGlobalGroup rewrites mapped_name on all global rows carrying
// oldName. This affects every user and is the administrative counterpart of
// RenameGroup. Unlike the user scope, the rename is a single statement: the
// shared group changes name for everyone or for no one.
func (s *SQLiteStorage) AdminRenameGlobalGroup(ctx context.Context, oldName, newName string) (service.PartialResult, error) {
	var result service.PartialResult

	if err := validateContext(ctx); err != nil {
		return result, err
	}
	if err := validateString(oldName, "oldName"); err != nil {
		return result, err
	}
	if err := validateString(newName, "newName"); err != nil {
		return result, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE global_product_mappings SET mapped_name = ? WHERE mapped_name = ?
	`, newName, oldName)
	if err != nil {
		return result, fmt.Errorf("failed to rename global group: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("failed to get rows affected: %w", err)
	}

	result.Succeeded = int(affected)
	result.Updated = int(affected)
	return result, nil
}

// AdminDeleteGlobalMapping hard-deletes a shared mapping and any user
// overrides hanging off it. Administrative path only.
func (s *SQLiteStorage) AdminDeleteGlobalMapping(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_global_overrides WHERE global_mapping_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete overrides: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM global_product_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete global mapping: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: global mapping %s", common.ErrNotFound, id)
	}

	return tx.Commit()
}
