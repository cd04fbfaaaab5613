// Package cluster groups near-duplicate product names into candidate
// clusters and filters out proposals the user has already resolved or
// dismissed.
package cluster

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/similarity"
)

// DefaultThreshold is the minimum similarity score for two names to land in
// the same cluster.
const DefaultThreshold = 0.6

// Build groups names into candidate clusters using greedy single-pass
// clustering. The result depends on input order, so callers must pass names
// in a stable order (see SortNames). Singletons are dropped; only clusters
// with two or more members are duplicates worth suggesting.
//
// Pure and re-entrant; safe to recompute from scratch on every call. The
// context is checked between seed iterations so large inputs (O(n²)
// comparisons) can be canceled.
func Build(ctx context.Context, names []string, threshold float64) ([]model.Cluster, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var clusters []model.Cluster
	processed := make(map[int]bool, len(names))

	for i := 0; i < len(names); i++ {
		if processed[i] {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		members := []string{names[i]}
		processed[i] = true

		for j := i + 1; j < len(names); j++ {
			if processed[j] {
				continue
			}
			if similarity.Score(names[i], names[j]) >= threshold {
				members = append(members, names[j])
				processed[j] = true
			}
		}

		if len(members) < 2 {
			continue
		}

		// Coarse confidence heuristic: larger clusters are safer bets.
		score := 0.7
		if len(members) > 2 {
			score = 0.9
		}

		clusters = append(clusters, model.Cluster{
			Members:       members,
			SuggestedName: shortestMember(members),
			Score:         score,
		})
	}

	return clusters, nil
}

// shortestMember picks the shortest member name, ties broken by first
// occurrence in member order.
func shortestMember(members []string) string {
	best := members[0]
	bestLen := utf8.RuneCountInString(best)
	for _, m := range members[1:] {
		if l := utf8.RuneCountInString(m); l < bestLen {
			best = m
			bestLen = l
		}
	}
	return best
}

// SortNames orders names by occurrence count descending, then
// alphabetically, giving Build a stable, frequency-first input order.
func SortNames(counts []model.NameCount) []string {
	sorted := make([]model.NameCount, len(counts))
	copy(sorted, counts)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Name < sorted[j].Name
	})

	names := make([]string, len(sorted))
	for i, c := range sorted {
		names[i] = c.Name
	}
	return names
}

// UnmappedNames returns the observed names with no grouped mapping in either
// layer, by exact case-sensitive equality. Fuzzy matching is Build's job,
// not this one's. Degenerate ungrouped rows do not hide a name.
func UnmappedNames(observed []string, userMappings []model.ProductMapping, globalMappings []model.GlobalProductMapping) []string {
	mapped := make(map[string]bool, len(userMappings)+len(globalMappings))
	for i := range userMappings {
		if userMappings[i].Grouped() {
			mapped[userMappings[i].OriginalName] = true
		}
	}
	for i := range globalMappings {
		if globalMappings[i].Grouped() {
			mapped[globalMappings[i].OriginalName] = true
		}
	}

	var unmapped []string
	for _, name := range observed {
		if !mapped[name] {
			unmapped = append(unmapped, name)
		}
	}
	return unmapped
}
