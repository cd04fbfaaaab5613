package cluster

import (
	"github.com/lindqvist/kvitto/internal/model"
)

// Filter removes clusters the user has already dismissed or fully applied.
//
// A cluster is dropped when its canonical key is in ignoredKeys, or when no
// member would actually change mapping state: if every member is already
// mapped to the cluster's proposed name there is nothing left to apply, and
// re-suggesting it would just annoy the user. currentGroups maps each
// already-grouped name to its current group name.
//
// Deterministic and idempotent: filtering the same input twice yields the
// same output.
func Filter(clusters []model.Cluster, ignoredKeys map[string]bool, currentGroups map[string]string) []model.Cluster {
	kept := make([]model.Cluster, 0, len(clusters))

	for _, c := range clusters {
		if ignoredKeys[c.Key()] {
			continue
		}
		if !changesAnything(c, currentGroups) {
			continue
		}
		kept = append(kept, c)
	}

	return kept
}

// changesAnything reports whether at least one member is unmapped or mapped
// to a different group than the cluster proposes.
func changesAnything(c model.Cluster, currentGroups map[string]string) bool {
	for _, member := range c.Members {
		group, ok := currentGroups[member]
		if !ok || group != c.SuggestedName {
			return true
		}
	}
	return false
}
