package model

import (
	"sort"
	"strings"
	"time"
)

// ClusterKeySeparator joins sorted member names into a canonical cluster key.
// Not expected to appear in product names.
const ClusterKeySeparator = "|"

// Cluster is a candidate grouping proposal produced by similarity matching
// or by the AI suggestion collaborator. It has not been applied yet.
type Cluster struct {
	SuggestedName string
	Reasoning     string
	Members       []string
	Score         float64
}

// Key returns the canonical order-independent identity of the cluster:
// members deduplicated, sorted lexicographically, and joined.
func (c *Cluster) Key() string {
	return ClusterKey(c.Members)
}

// ClusterKey computes the canonical key for a set of member names.
func ClusterKey(members []string) string {
	seen := make(map[string]bool, len(members))
	unique := make([]string, 0, len(members))
	for _, m := range members {
		if !seen[m] {
			seen[m] = true
			unique = append(unique, m)
		}
	}
	sort.Strings(unique)
	return strings.Join(unique, ClusterKeySeparator)
}

// IgnoredSuggestion records that a user explicitly dismissed a candidate
// cluster so it is not re-suggested. Rows are append-only.
type IgnoredSuggestion struct {
	CreatedAt time.Time
	ID        string
	UserID    string
	Products  []string
}

// Key returns the canonical cluster key for the ignored member set.
func (s *IgnoredSuggestion) Key() string {
	return ClusterKey(s.Products)
}

// NameCount pairs an observed product name with how many times it appeared
// on receipt line items. The AI suggestion collaborator consumes these.
type NameCount struct {
	Name  string
	Count int
}
