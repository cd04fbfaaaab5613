package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/model"
)

// SaveOverride creates or updates a user's category override on a global
// mapping. Upsert on (user, global mapping): re-overriding replaces the
// previous choice, it never produces a second row.
func (s *SQLiteStorage) SaveOverride(ctx context.Context, override *model.UserGlobalOverride) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOverride(override); err != nil {
		return err
	}

	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	now := time.Now()
	if override.CreatedAt.IsZero() {
		override.CreatedAt = now
	}
	override.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_global_overrides (id, user_id, global_mapping_id, override_category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, global_mapping_id) DO UPDATE SET
			override_category = excluded.override_category,
			updated_at = excluded.updated_at
	`, override.ID, override.UserID, override.GlobalMappingID, override.OverrideCategory,
		override.CreatedAt, override.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}

	return nil
}

// GetOverride retrieves one user's override on a global mapping.
func (s *SQLiteStorage) GetOverride(ctx context.Context, userID, globalMappingID string) (*model.UserGlobalOverride, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(globalMappingID, "globalMappingID"); err != nil {
		return nil, err
	}

	var o model.UserGlobalOverride
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, global_mapping_id, override_category, created_at, updated_at
		FROM user_global_overrides
		WHERE user_id = ? AND global_mapping_id = ?
	`, userID, globalMappingID).Scan(
		&o.ID, &o.UserID, &o.GlobalMappingID, &o.OverrideCategory, &o.CreatedAt, &o.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override: %w", err)
	}

	return &o, nil
}

// GetOverridesForUser retrieves all of a user's overrides.
func (s *SQLiteStorage) GetOverridesForUser(ctx context.Context, userID string) ([]model.UserGlobalOverride, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, global_mapping_id, override_category, created_at, updated_at
		FROM user_global_overrides
		WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var overrides []model.UserGlobalOverride
	for rows.Next() {
		var o model.UserGlobalOverride
		err := rows.Scan(&o.ID, &o.UserID, &o.GlobalMappingID, &o.OverrideCategory, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		overrides = append(overrides, o)
	}

	return overrides, rows.Err()
}

// DeleteOverride removes a user's override, reverting the global mapping's
// category to the shared default.
func (s *SQLiteStorage) DeleteOverride(ctx context.Context, userID, globalMappingID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(globalMappingID, "globalMappingID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM user_global_overrides
		WHERE user_id = ? AND global_mapping_id = ?
	`, userID, globalMappingID)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: override for global mapping %s", common.ErrNotFound, globalMappingID)
	}

	return nil
}
