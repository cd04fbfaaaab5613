package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/service"
)

// SaveLineItems stores extracted receipt line items. All-or-nothing within
// one receipt import; a failed import can simply be retried.
func (s *SQLiteStorage) SaveLineItems(ctx context.Context, items []model.ReceiptLineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: items", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range items {
		item := &items[i]
		if item.UserID == "" {
			return fmt.Errorf("%w: line item %q missing user ID", ErrInvalidMapping, item.Name)
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO receipt_line_items (id, user_id, receipt_id, name, price, quantity, category, purchased_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, item.ID, item.UserID, nullIfBlank(item.ReceiptID), item.Name,
			item.Price, item.Quantity, nullIfBlank(item.Category), item.PurchasedAt)
		if err != nil {
			return fmt.Errorf("failed to insert line item %q: %w", item.Name, err)
		}
	}

	return tx.Commit()
}

// GetObservedNames returns every distinct product name on the user's
// receipts with its occurrence count, ordered by count descending then name.
// This is the raw input to clustering and to the AI suggestion collaborator.
func (s *SQLiteStorage) GetObservedNames(ctx context.Context, userID string) ([]model.NameCount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, COUNT(*) AS occurrences
		FROM receipt_line_items
		WHERE user_id = ?
		GROUP BY name
		ORDER BY occurrences DESC, name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query observed names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []model.NameCount
	for rows.Next() {
		var c model.NameCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan observed name: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// GetNameAggregates summarizes the user's line items per product name:
// total spend, purchase count, and the distinct categories observed. Drives
// group views and mixed-category checks during merges.
func (s *SQLiteStorage) GetNameAggregates(ctx context.Context, userID string) (map[string]service.NameAggregate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, category, SUM(price * quantity), COUNT(*)
		FROM receipt_line_items
		WHERE user_id = ?
		GROUP BY name, category
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query name aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	aggregates := make(map[string]service.NameAggregate)
	for rows.Next() {
		var (
			name     string
			category sql.NullString
			spend    float64
			count    int
		)
		if err := rows.Scan(&name, &category, &spend, &count); err != nil {
			return nil, fmt.Errorf("failed to scan name aggregate: %w", err)
		}

		agg := aggregates[name]
		agg.TotalSpend += spend
		agg.Count += count
		if category.Valid && category.String != "" {
			agg.Categories = append(agg.Categories, category.String)
		}
		aggregates[name] = agg
	}

	return aggregates, rows.Err()
}
