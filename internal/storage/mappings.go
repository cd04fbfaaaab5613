package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/service"
)

// CreateMapping inserts a new user-scoped mapping. It fails with
// common.ErrConflict when any row already exists for the same
// (user, original name) pair; upsert semantics live in SaveMapping instead,
// so a caller never silently discards a prior category choice.
func (s *SQLiteStorage) CreateMapping(ctx context.Context, mapping *model.ProductMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(mapping); err != nil {
		return err
	}

	existing, err := s.GetMapping(ctx, mapping.UserID, mapping.OriginalName)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %q for user %s", common.ErrConflict, mapping.OriginalName, mapping.UserID)
	}

	return s.insertMapping(ctx, mapping)
}

// SaveMapping creates or updates the mapping for (user, original name).
// Unlike CreateMapping it deliberately overwrites the previous group and
// category. It never adds a second row for the same name.
func (s *SQLiteStorage) SaveMapping(ctx context.Context, mapping *model.ProductMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(mapping); err != nil {
		return err
	}

	existing, err := s.GetMapping(ctx, mapping.UserID, mapping.OriginalName)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if existing == nil {
		return s.insertMapping(ctx, mapping)
	}

	now := time.Now()
	// Update every row carrying this name: earlier buggy writes may have left
	// duplicates, and converging them all keeps resolution deterministic.
	_, err = s.db.ExecContext(ctx, `
		UPDATE product_mappings
		SET mapped_name = ?, category = ?, updated_at = ?
		WHERE user_id = ? AND original_name = ?
	`, nullIfBlank(mapping.MappedName), nullIfBlank(mapping.Category), now, mapping.UserID, mapping.OriginalName)
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}

	mapping.ID = existing.ID
	mapping.CreatedAt = existing.CreatedAt
	mapping.UpdatedAt = now
	s.cacheMapping(mapping)
	return nil
}

func (s *SQLiteStorage) insertMapping(ctx context.Context, mapping *model.ProductMapping) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	now := time.Now()
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_mappings (id, user_id, original_name, mapped_name, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, mapping.ID, mapping.UserID, mapping.OriginalName,
		nullIfBlank(mapping.MappedName), nullIfBlank(mapping.Category),
		mapping.CreatedAt, mapping.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert mapping: %w", err)
	}

	s.cacheMapping(mapping)
	return nil
}

// GetMapping retrieves the mapping for one (user, original name) pair.
// Returns common.ErrNotFound when no row exists. If duplicate rows exist
// from earlier buggy writes, the oldest one wins.
func (s *SQLiteStorage) GetMapping(ctx context.Context, userID, originalName string) (*model.ProductMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(originalName, "originalName"); err != nil {
		return nil, err
	}

	if mapping := s.getCachedMapping(userID, originalName); mapping != nil {
		return mapping, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, original_name, mapped_name, category, created_at, updated_at
		FROM product_mappings
		WHERE user_id = ? AND original_name = ?
		ORDER BY created_at ASC
		LIMIT 1
	`, userID, originalName)

	mapping, err := scanMapping(row)
	if err != nil {
		return nil, err
	}

	s.cacheMapping(mapping)
	return mapping, nil
}

// GetMappingByID retrieves a user-scoped mapping by row ID.
func (s *SQLiteStorage) GetMappingByID(ctx context.Context, id string) (*model.ProductMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, original_name, mapped_name, category, created_at, updated_at
		FROM product_mappings
		WHERE id = ?
	`, id)

	return scanMapping(row)
}

// GetMappingsForUser retrieves all of one user's mappings, ordered by name.
func (s *SQLiteStorage) GetMappingsForUser(ctx context.Context, userID string) ([]model.ProductMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	return s.queryMappings(ctx, `
		SELECT id, user_id, original_name, mapped_name, category, created_at, updated_at
		FROM product_mappings
		WHERE user_id = ?
		ORDER BY original_name
	`, userID)
}

// GetMappingsByGroup retrieves the user's mappings sharing one mapped name.
func (s *SQLiteStorage) GetMappingsByGroup(ctx context.Context, userID, mappedName string) ([]model.ProductMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(mappedName, "mappedName"); err != nil {
		return nil, err
	}

	return s.queryMappings(ctx, `
		SELECT id, user_id, original_name, mapped_name, category, created_at, updated_at
		FROM product_mappings
		WHERE user_id = ? AND mapped_name = ?
		ORDER BY original_name
	`, userID, mappedName)
}

// UpdateCategory sets the category on all of the calling user's rows sharing
// a mapped name and returns how many rows changed. Global rows are never
// touched by this call; a user changes a global group's effective category
// through an override instead.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, userID, mappedName, category string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}
	if err := validateString(mappedName, "mappedName"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE product_mappings
		SET category = ?, updated_at = ?
		WHERE user_id = ? AND mapped_name = ?
	`, nullIfBlank(category), time.Now(), userID, mappedName)
	if err != nil {
		return 0, fmt.Errorf("failed to update category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.invalidateUserCache(userID)
	return int(affected), nil
}

// RenameGroup rewrites mapped_name on all rows carrying oldName in the given
// scope. Rows are updated one at a time and failures do not roll back prior
// successes: the underlying store is not transactional across users' screens,
// so the result reports succeeded and failed counts distinctly.
func (s *SQLiteStorage) RenameGroup(ctx context.Context, userID, oldName, newName string, scope model.MappingScope) (service.PartialResult, error) {
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
	if err := validateScope(scope); err != nil {
		return result, err
	}

	if scope == model.ScopeGlobal {
		return s.AdminRenameGlobalGroup(ctx, oldName, newName)
	}

	if err := validateString(userID, "userID"); err != nil {
		return result, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, original_name FROM product_mappings
		WHERE user_id = ? AND mapped_name = ?
	`, userID, oldName)
	if err != nil {
		return result, fmt.Errorf("failed to query group rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type target struct{ id, name string }
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.name); err != nil {
			return result, fmt.Errorf("failed to scan group row: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return result, err
	}

	now := time.Now()
	for _, t := range targets {
		_, execErr := s.db.ExecContext(ctx, `
			UPDATE product_mappings SET mapped_name = ?, updated_at = ? WHERE id = ?
		`, newName, now, t.id)
		if execErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, service.RowError{Name: t.name, Err: execErr})
			continue
		}
		result.Succeeded++
		result.Updated++
	}

	s.invalidateUserCache(userID)
	return result, nil
}

// UpdateMappingGroup rewrites the group (and optionally category) of a
// single row identified by a scope-tagged ref. Permission policy on global
// refs is the orchestrator's responsibility; this is the raw write.
func (s *SQLiteStorage) UpdateMappingGroup(ctx context.Context, ref model.MappingRef, mappedName, category string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(ref.ID, "ref.ID"); err != nil {
		return err
	}
	if err := validateScope(ref.Scope); err != nil {
		return err
	}

	var (
		result sql.Result
		err    error
	)

	switch ref.Scope {
	case model.ScopeUser:
		if category != "" {
			result, err = s.db.ExecContext(ctx, `
				UPDATE product_mappings SET mapped_name = ?, category = ?, updated_at = ? WHERE id = ?
			`, nullIfBlank(mappedName), category, time.Now(), ref.ID)
		} else {
			result, err = s.db.ExecContext(ctx, `
				UPDATE product_mappings SET mapped_name = ?, updated_at = ? WHERE id = ?
			`, nullIfBlank(mappedName), time.Now(), ref.ID)
		}
	case model.ScopeGlobal:
		if category != "" {
			result, err = s.db.ExecContext(ctx, `
				UPDATE global_product_mappings SET mapped_name = ?, category = ? WHERE id = ?
			`, nullIfBlank(mappedName), category, ref.ID)
		} else {
			result, err = s.db.ExecContext(ctx, `
				UPDATE global_product_mappings SET mapped_name = ? WHERE id = ?
			`, nullIfBlank(mappedName), ref.ID)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to update %s mapping %s: %w", ref.Scope, ref.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s mapping %s", common.ErrNotFound, ref.Scope, ref.ID)
	}

	s.cacheMutex.Lock()
	s.mappingCache = make(map[string]*model.ProductMapping)
	s.cacheMutex.Unlock()
	return nil
}

// DeleteMapping hard-deletes a mapping row. Global deletes are forbidden on
// this path; they require the administrative AdminDeleteGlobalMapping.
// Deleting a mapping never deletes receipt line items, it only reverts the
// name to ungrouped.
func (s *SQLiteStorage) DeleteMapping(ctx context.Context, ref model.MappingRef) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(ref.ID, "ref.ID"); err != nil {
		return err
	}
	if err := validateScope(ref.Scope); err != nil {
		return err
	}

	if ref.Scope == model.ScopeGlobal {
		return fmt.Errorf("%w: delete of global mapping %s", common.ErrPermission, ref.ID)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM product_mappings WHERE id = ?`, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: mapping %s", common.ErrNotFound, ref.ID)
	}

	s.cacheMutex.Lock()
	s.mappingCache = make(map[string]*model.ProductMapping)
	s.cacheMutex.Unlock()
	return nil
}

// CleanupDegenerateMappings removes a user's rows whose mapped name is NULL
// or blank. Such rows were produced by earlier buggy writes; reads tolerate
// them, and this targeted cleanup removes them without touching line items.
func (s *SQLiteStorage) CleanupDegenerateMappings(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM product_mappings
		WHERE user_id = ? AND (mapped_name IS NULL OR TRIM(mapped_name) = '')
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up degenerate mappings: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.invalidateUserCache(userID)
	return int(affected), nil
}

func (s *SQLiteStorage) queryMappings(ctx context.Context, query string, args ...any) ([]model.ProductMapping, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.ProductMapping
	for rows.Next() {
		var (
			m          model.ProductMapping
			mappedName sql.NullString
			category   sql.NullString
		)
		err := rows.Scan(&m.ID, &m.UserID, &m.OriginalName, &mappedName, &category, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		m.MappedName = mappedName.String
		m.Category = category.String
		mappings = append(mappings, m)
	}

	return mappings, rows.Err()
}

func scanMapping(row *sql.Row) (*model.ProductMapping, error) {
	var (
		m          model.ProductMapping
		mappedName sql.NullString
		category   sql.NullString
	)

	err := row.Scan(&m.ID, &m.UserID, &m.OriginalName, &mappedName, &category, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mapping: %w", err)
	}

	m.MappedName = mappedName.String
	m.Category = category.String
	return &m, nil
}

// nullIfBlank stores empty or whitespace-only strings as NULL so that
// "ungrouped" and "no category" are represented one way in the database.
func nullIfBlank(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
