package cluster

import (
	"context"
	"testing"

	"github.com/lindqvist/kvitto/internal/model"
)

func TestFilter_DropsIgnored(t *testing.T) {
	clusters := []model.Cluster{
		{Members: []string{"Mjölk", "Mjölk 1L"}, SuggestedName: "Mjölk"},
		{Members: []string{"Ägg", "Ägg 12p"}, SuggestedName: "Ägg"},
	}
	ignored := map[string]bool{
		model.ClusterKey([]string{"Mjölk 1L", "Mjölk"}): true, // order-independent
	}

	kept := Filter(clusters, ignored, nil)

	if len(kept) != 1 {
		t.Fatalf("expected 1 cluster after filtering, got %d", len(kept))
	}
	if kept[0].SuggestedName != "Ägg" {
		t.Errorf("wrong cluster survived: %q", kept[0].SuggestedName)
	}
}

func TestFilter_DropsFullyAppliedCluster(t *testing.T) {
	clusters := []model.Cluster{
		{Members: []string{"Mjölk", "Mjölk 1L"}, SuggestedName: "Mjölk"},
	}
	currentGroups := map[string]string{
		"Mjölk":    "Mjölk",
		"Mjölk 1L": "Mjölk",
	}

	kept := Filter(clusters, nil, currentGroups)
	if len(kept) != 0 {
		t.Errorf("fully applied cluster should be dropped, got %v", kept)
	}
}

func TestFilter_KeepsClusterWithOneRealChange(t *testing.T) {
	clusters := []model.Cluster{
		{Members: []string{"Mjölk", "Mjölk 1L", "Mjölk 1,5L"}, SuggestedName: "Mjölk"},
	}
	// Two members applied, one mapped elsewhere: still a useful suggestion.
	currentGroups := map[string]string{
		"Mjölk":      "Mjölk",
		"Mjölk 1L":   "Mjölk",
		"Mjölk 1,5L": "Mejeri",
	}

	kept := Filter(clusters, nil, currentGroups)
	if len(kept) != 1 {
		t.Errorf("cluster with a remapped member should survive, got %v", kept)
	}
}

func TestFilter_Idempotent(t *testing.T) {
	clusters := []model.Cluster{
		{Members: []string{"Kaffe", "Kaffe Mellanrost"}, SuggestedName: "Kaffe"},
		{Members: []string{"Te", "Te Earl Grey"}, SuggestedName: "Te"},
	}
	ignored := map[string]bool{
		model.ClusterKey([]string{"Te", "Te Earl Grey"}): true,
	}

	once := Filter(clusters, ignored, nil)
	twice := Filter(once, ignored, nil)

	if len(once) != len(twice) {
		t.Fatalf("filter not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Key() != twice[i].Key() {
			t.Errorf("filter not idempotent at %d: %q vs %q", i, once[i].Key(), twice[i].Key())
		}
	}
}

func TestFilter_IgnoreThenRebuildNeverResurfaces(t *testing.T) {
	// After ignoring a cluster, rebuilding from the same input and filtering
	// must never return a cluster with the same member set.
	names := []string{"Filmjölk 3%", "Filmjölk 3 procent", "Äpple"}

	clusters, err := Build(context.Background(), names, 0.6)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}

	ignored := map[string]bool{clusters[0].Key(): true}

	rebuilt, err := Build(context.Background(), names, 0.6)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	kept := Filter(rebuilt, ignored, nil)

	for _, c := range kept {
		if ignored[c.Key()] {
			t.Errorf("ignored cluster resurfaced: %q", c.Key())
		}
	}
	if len(kept) != 0 {
		t.Errorf("expected no clusters after ignoring the only suggestion, got %v", kept)
	}
}
