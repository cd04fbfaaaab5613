// Package model defines the core domain types for the kvitto grouping engine.
package model

import (
	"strings"
	"time"
)

// MappingScope identifies which layer a mapping row lives in.
type MappingScope string

const (
	// ScopeUser indicates a mapping owned by a single user.
	ScopeUser MappingScope = "user"
	// ScopeGlobal indicates a shared mapping visible to all users.
	ScopeGlobal MappingScope = "global"
)

// ProductMapping associates a raw product name with a canonical group name
// and optional category, scoped to one user.
type ProductMapping struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ID           string
	UserID       string
	OriginalName string
	MappedName   string
	Category     string
}

// Grouped reports whether the mapping assigns the product to a group.
// An empty or whitespace-only mapped name means "ungrouped", not a group
// named "".
func (m *ProductMapping) Grouped() bool {
	return strings.TrimSpace(m.MappedName) != ""
}

// GlobalProductMapping is a community/curated default grouping shared across
// all users. It carries no user identity and is writable only through the
// administrative path.
type GlobalProductMapping struct {
	ID           string
	OriginalName string
	MappedName   string
	Category     string
}

// Grouped reports whether the global mapping assigns the product to a group.
func (m *GlobalProductMapping) Grouped() bool {
	return strings.TrimSpace(m.MappedName) != ""
}

// UserGlobalOverride lets a user locally override the category of a global
// mapping without mutating the shared record. It never overrides the mapped
// name, only the category.
type UserGlobalOverride struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ID               string
	UserID           string
	GlobalMappingID  string
	OverrideCategory string
}

// MappingRef identifies a mapping row in either layer. Storage operations
// dispatch on the scope tag rather than branching on ad hoc type strings.
type MappingRef struct {
	Scope MappingScope
	ID    string
}
