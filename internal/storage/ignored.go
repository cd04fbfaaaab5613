package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/lindqvist/kvitto/internal/model"
)

// AddIgnoredSuggestion records that the user dismissed a candidate cluster.
// Keyed by the canonical sorted member set; ignoring the same cluster twice
// is treated as success, so dismiss actions are idempotent.
func (s *SQLiteStorage) AddIgnoredSuggestion(ctx context.Context, suggestion *model.IgnoredSuggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if suggestion == nil {
		return fmt.Errorf("%w: suggestion", ErrNilParameter)
	}
	if err := validateString(suggestion.UserID, "userID"); err != nil {
		return err
	}
	if len(suggestion.Products) < 2 {
		return fmt.Errorf("%w: ignored suggestion needs at least 2 products", ErrEmptySlice)
	}

	if suggestion.ID == "" {
		suggestion.ID = uuid.NewString()
	}
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ignored_merge_suggestions (id, user_id, products, created_at)
		VALUES (?, ?, ?, ?)
	`, suggestion.ID, suggestion.UserID, suggestion.Key(), suggestion.CreatedAt)

	if isUniqueViolation(err) {
		// Already ignored: idempotent success.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add ignored suggestion: %w", err)
	}

	return nil
}

// GetIgnoredKeys loads the user's dismissed cluster keys into a lookup set.
// Loaded once per session and passed explicitly into the suggestion filter.
func (s *SQLiteStorage) GetIgnoredKeys(ctx context.Context, userID string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT products FROM ignored_merge_suggestions WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ignored suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan ignored suggestion: %w", err)
		}
		keys[key] = true
	}

	return keys, rows.Err()
}

// DeleteSupersededIgnores removes ignore records whose member products are
// all grouped by now. The filter already suppresses such clusters, so these
// rows are dead weight; this keeps the ignore list from growing forever.
func (s *SQLiteStorage) DeleteSupersededIgnores(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	keys, err := s.GetIgnoredKeys(ctx, userID)
	if err != nil {
		return 0, err
	}

	userMappings, err := s.GetMappingsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	globalMappings, err := s.GetGlobalMappings(ctx)
	if err != nil {
		return 0, err
	}

	grouped := make(map[string]bool, len(userMappings)+len(globalMappings))
	for i := range userMappings {
		if userMappings[i].Grouped() {
			grouped[userMappings[i].OriginalName] = true
		}
	}
	for i := range globalMappings {
		if globalMappings[i].Grouped() {
			grouped[globalMappings[i].OriginalName] = true
		}
	}

	deleted := 0
	for key := range keys {
		allMapped := true
		for _, name := range strings.Split(key, model.ClusterKeySeparator) {
			if !grouped[name] {
				allMapped = false
				break
			}
		}
		if !allMapped {
			continue
		}

		result, execErr := s.db.ExecContext(ctx, `
			DELETE FROM ignored_merge_suggestions WHERE user_id = ? AND products = ?
		`, userID, key)
		if execErr != nil {
			return deleted, fmt.Errorf("failed to delete superseded ignore: %w", execErr)
		}
		if n, raErr := result.RowsAffected(); raErr == nil {
			deleted += int(n)
		}
	}

	return deleted, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
