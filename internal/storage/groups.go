package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/lindqvist/kvitto/internal/model"
)

// ListGroups computes the derived group view for one user: every mapped
// name bucketed under its canonical group, combining the user's own rows
// with global rows not shadowed by a user row for the same original name.
// Category overrides and line-item aggregates are folded in on read; nothing
// here is persisted. Degenerate ungrouped rows are tolerated and skipped.
func (s *SQLiteStorage) ListGroups(ctx context.Context, userID string) ([]model.ProductGroup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	userMappings, err := s.GetMappingsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user mappings: %w", err)
	}
	globalMappings, err := s.GetGlobalMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load global mappings: %w", err)
	}
	overrides, err := s.GetOverridesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}
	aggregates, err := s.GetNameAggregates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load line item aggregates: %w", err)
	}

	overrideByMapping := make(map[string]string, len(overrides))
	for i := range overrides {
		overrideByMapping[overrides[i].GlobalMappingID] = overrides[i].OverrideCategory
	}

	userNames := make(map[string]bool, len(userMappings))
	for i := range userMappings {
		userNames[userMappings[i].OriginalName] = true
	}

	type bucket struct {
		group     *model.ProductGroup
		hasUser   bool
		hasGlobal bool
		memberSet map[string]bool
	}
	buckets := make(map[string]*bucket)

	getBucket := func(name string) *bucket {
		b, ok := buckets[name]
		if !ok {
			b = &bucket{
				group:     &model.ProductGroup{Name: name},
				memberSet: make(map[string]bool),
			}
			buckets[name] = b
		}
		return b
	}

	for i := range userMappings {
		m := &userMappings[i]
		if !m.Grouped() {
			continue
		}
		b := getBucket(m.MappedName)
		b.hasUser = true
		if !b.memberSet[m.OriginalName] {
			b.memberSet[m.OriginalName] = true
			b.group.Members = append(b.group.Members, m.OriginalName)
		}
		if b.group.Category == "" && m.Category != "" {
			b.group.Category = m.Category
		}
	}

	for i := range globalMappings {
		g := &globalMappings[i]
		if !g.Grouped() {
			continue
		}
		// A user row for the same original name shadows the global one.
		if userNames[g.OriginalName] {
			continue
		}
		b := getBucket(g.MappedName)
		b.hasGlobal = true
		if !b.memberSet[g.OriginalName] {
			b.memberSet[g.OriginalName] = true
			b.group.Members = append(b.group.Members, g.OriginalName)
		}
		if b.group.Category == "" {
			if cat, ok := overrideByMapping[g.ID]; ok {
				b.group.Category = cat
			} else if g.Category != "" {
				b.group.Category = g.Category
			}
		}
	}

	groups := make([]model.ProductGroup, 0, len(buckets))
	for _, b := range buckets {
		switch {
		case b.hasUser && b.hasGlobal:
			b.group.Source = model.GroupSourceMixed
		case b.hasGlobal:
			b.group.Source = model.GroupSourceGlobal
		default:
			b.group.Source = model.GroupSourceUser
		}

		sort.Strings(b.group.Members)

		seenCat := make(map[string]bool)
		for _, member := range b.group.Members {
			agg, ok := aggregates[member]
			if !ok {
				continue
			}
			b.group.TotalSpend += agg.TotalSpend
			b.group.PurchaseCount += agg.Count
			for _, cat := range agg.Categories {
				if !seenCat[cat] {
					seenCat[cat] = true
					b.group.ObservedCategories = append(b.group.ObservedCategories, cat)
				}
			}
		}
		sort.Strings(b.group.ObservedCategories)

		groups = append(groups, *b.group)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}
