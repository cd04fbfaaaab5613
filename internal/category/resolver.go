// Package category resolves the effective category for products and groups,
// applying user-level overrides on top of global defaults.
package category

import (
	"sort"

	"github.com/lindqvist/kvitto/internal/model"
)

// Effective returns the category that should be displayed for a product.
// A user-scoped mapping wins outright; otherwise the global mapping's
// category applies, replaced by the user's override when one exists. An
// empty result means no category is known.
func Effective(userMapping *model.ProductMapping, globalMapping *model.GlobalProductMapping, override *model.UserGlobalOverride) string {
	if userMapping != nil && userMapping.Category != "" {
		return userMapping.Category
	}
	if globalMapping == nil {
		return ""
	}
	if override != nil && override.OverrideCategory != "" {
		return override.OverrideCategory
	}
	return globalMapping.Category
}

// GroupStatus summarizes the categories observed across a group's members.
// Common is set only when exactly one distinct non-empty category exists.
type GroupStatus struct {
	Common   string
	Distinct []string
	Mixed    bool
}

// StatusOf computes the category status for a set of member categories.
// Empty strings mean "no category" and are not counted as distinct values.
// Used to drive mixed-category warnings and to pre-fill merge suggestions.
func StatusOf(memberCategories []string) GroupStatus {
	seen := make(map[string]bool)
	var distinct []string

	for _, cat := range memberCategories {
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		distinct = append(distinct, cat)
	}

	sort.Strings(distinct)

	status := GroupStatus{
		Distinct: distinct,
		Mixed:    len(distinct) > 1,
	}
	if len(distinct) == 1 {
		status.Common = distinct[0]
	}
	return status
}
