// Package storage provides the data persistence layer for the kvitto engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lindqvist/kvitto/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrEmptySlice     = errors.New("slice cannot be empty")
	ErrInvalidMapping = errors.New("invalid mapping")
	ErrInvalidScope   = errors.New("invalid mapping scope")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateMapping validates a user-scoped product mapping.
func validateMapping(mapping *model.ProductMapping) error {
	if mapping == nil {
		return fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if mapping.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidMapping)
	}
	if strings.TrimSpace(mapping.OriginalName) == "" {
		return fmt.Errorf("%w: missing original name", ErrInvalidMapping)
	}
	return nil
}

// validateGlobalMapping validates a global product mapping.
func validateGlobalMapping(mapping *model.GlobalProductMapping) error {
	if mapping == nil {
		return fmt.Errorf("%w: mapping", ErrNilParameter)
	}
	if strings.TrimSpace(mapping.OriginalName) == "" {
		return fmt.Errorf("%w: missing original name", ErrInvalidMapping)
	}
	return nil
}

// validateOverride validates a user override on a global mapping.
func validateOverride(override *model.UserGlobalOverride) error {
	if override == nil {
		return fmt.Errorf("%w: override", ErrNilParameter)
	}
	if override.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidMapping)
	}
	if override.GlobalMappingID == "" {
		return fmt.Errorf("%w: missing global mapping ID", ErrInvalidMapping)
	}
	if strings.TrimSpace(override.OverrideCategory) == "" {
		return fmt.Errorf("%w: missing override category", ErrInvalidMapping)
	}
	return nil
}

// validateScope ensures the scope tag is a known value.
func validateScope(scope model.MappingScope) error {
	switch scope {
	case model.ScopeUser, model.ScopeGlobal:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
}
