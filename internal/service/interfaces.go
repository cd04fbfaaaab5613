// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/lindqvist/kvitto/internal/model"
)

// Storage defines the contract for the mapping persistence layer.
type Storage interface {
	// User-scoped mapping operations
	CreateMapping(ctx context.Context, mapping *model.ProductMapping) error
	SaveMapping(ctx context.Context, mapping *model.ProductMapping) error
	GetMapping(ctx context.Context, userID, originalName string) (*model.ProductMapping, error)
	GetMappingByID(ctx context.Context, id string) (*model.ProductMapping, error)
	GetMappingsForUser(ctx context.Context, userID string) ([]model.ProductMapping, error)
	GetMappingsByGroup(ctx context.Context, userID, mappedName string) ([]model.ProductMapping, error)
	UpdateCategory(ctx context.Context, userID, mappedName, category string) (int, error)
	DeleteMapping(ctx context.Context, ref model.MappingRef) error
	CleanupDegenerateMappings(ctx context.Context, userID string) (int, error)

	// Scope-aware write used by manual merges and renames
	UpdateMappingGroup(ctx context.Context, ref model.MappingRef, mappedName, category string) error
	RenameGroup(ctx context.Context, userID, oldName, newName string, scope model.MappingScope) (PartialResult, error)

	// Global mapping operations
	GetGlobalMappings(ctx context.Context) ([]model.GlobalProductMapping, error)
	GetGlobalMappingByID(ctx context.Context, id string) (*model.GlobalProductMapping, error)
	CreateGlobalMapping(ctx context.Context, mapping *model.GlobalProductMapping) error
	AdminRenameGlobalGroup(ctx context.Context, oldName, newName string) (PartialResult, error)
	AdminDeleteGlobalMapping(ctx context.Context, id string) error

	// User overrides on global mappings
	SaveOverride(ctx context.Context, override *model.UserGlobalOverride) error
	GetOverride(ctx context.Context, userID, globalMappingID string) (*model.UserGlobalOverride, error)
	GetOverridesForUser(ctx context.Context, userID string) ([]model.UserGlobalOverride, error)
	DeleteOverride(ctx context.Context, userID, globalMappingID string) error

	// Ignored suggestions
	AddIgnoredSuggestion(ctx context.Context, suggestion *model.IgnoredSuggestion) error
	GetIgnoredKeys(ctx context.Context, userID string) (map[string]bool, error)
	DeleteSupersededIgnores(ctx context.Context, userID string) (int, error)

	// Receipt line items (read side for grouping views)
	SaveLineItems(ctx context.Context, items []model.ReceiptLineItem) error
	GetObservedNames(ctx context.Context, userID string) ([]model.NameCount, error)
	GetNameAggregates(ctx context.Context, userID string) (map[string]NameAggregate, error)

	// Derived group view
	ListGroups(ctx context.Context, userID string) ([]model.ProductGroup, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
}

// SuggestionSource produces candidate clusters for a batch of observed
// product names. The AI collaborator and the local similarity builder both
// satisfy it; downstream filtering and merging treat them identically.
type SuggestionSource interface {
	SuggestGroups(ctx context.Context, names []model.NameCount) ([]model.Cluster, error)
}

// PartialResult reports the outcome of a multi-row operation where some rows
// may succeed and some fail. It is a result value, not an error: callers
// surface "7 of 9 applied" rather than rolling back.
type PartialResult struct {
	Errors    []RowError
	Created   int
	Updated   int
	Succeeded int
	Failed    int
}

// Ok reports whether every row succeeded.
func (r PartialResult) Ok() bool {
	return r.Failed == 0
}

// RowError records a single failed row within a batch operation.
type RowError struct {
	Err  error
	Name string
}

// NameAggregate summarizes receipt line items observed for one product name.
type NameAggregate struct {
	Categories []string
	TotalSpend float64
	Count      int
}
