package cluster

import (
	"context"
	"testing"

	"github.com/lindqvist/kvitto/internal/model"
)

func TestBuild_FilmjolkExample(t *testing.T) {
	ctx := context.Background()
	names := []string{"Filmjölk 3%", "Filmjölk 3 procent", "Äpple"}

	clusters, err := Build(ctx, names, 0.6)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(clusters) != 1 {
		t.Fatalf("expected exactly 1 cluster, got %d", len(clusters))
	}

	c := clusters[0]
	if len(c.Members) != 2 {
		t.Fatalf("expected 2 members, got %v", c.Members)
	}
	for _, m := range c.Members {
		if m == "Äpple" {
			t.Errorf("singleton %q should have been dropped, not clustered", m)
		}
	}
	if c.SuggestedName != "Filmjölk 3%" {
		t.Errorf("suggested name = %q, want shorter member %q", c.SuggestedName, "Filmjölk 3%")
	}
	if c.Score != 0.7 {
		t.Errorf("2-member cluster score = %v, want 0.7", c.Score)
	}
}

func TestBuild_SingletonsDropped(t *testing.T) {
	ctx := context.Background()
	names := []string{"Mjölk", "Bröd", "Smör"}

	clusters, err := Build(ctx, names, 0.6)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(clusters) != 0 {
		t.Errorf("expected no clusters from dissimilar names, got %v", clusters)
	}
}

func TestBuild_LargeClusterScore(t *testing.T) {
	ctx := context.Background()
	names := []string{"Mjölk", "Mjölk 1L", "Mjölk 1,5L", "Äpple"}

	clusters, err := Build(ctx, names, 0.6)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if len(clusters[0].Members) != 3 {
		t.Fatalf("expected 3 members, got %v", clusters[0].Members)
	}
	if clusters[0].Score != 0.9 {
		t.Errorf("3-member cluster score = %v, want 0.9", clusters[0].Score)
	}
	if clusters[0].SuggestedName != "Mjölk" {
		t.Errorf("suggested name = %q, want %q", clusters[0].SuggestedName, "Mjölk")
	}
}

func TestBuild_Reproducible(t *testing.T) {
	ctx := context.Background()
	names := []string{"Yoghurt naturell", "Yoghurt", "Yoghurt vanilj", "Kaffe"}

	first, err := Build(ctx, names, 0.6)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, err := Build(ctx, names, 0.6)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("runs disagree: %d vs %d clusters", len(first), len(second))
	}
	for i := range first {
		if first[i].Key() != second[i].Key() {
			t.Errorf("cluster %d differs between runs: %q vs %q", i, first[i].Key(), second[i].Key())
		}
	}
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, []string{"a", "b"}, 0.6)
	if err == nil {
		t.Fatal("expected context error from canceled Build")
	}
}

func TestSortNames(t *testing.T) {
	counts := []model.NameCount{
		{Name: "Bananer", Count: 2},
		{Name: "Mjölk", Count: 7},
		{Name: "Ägg", Count: 2},
	}

	got := SortNames(counts)
	want := []string{"Mjölk", "Bananer", "Ägg"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortNames = %v, want %v", got, want)
		}
	}
}

func TestUnmappedNames(t *testing.T) {
	observed := []string{"Mjölk", "mjölk", "Bröd", "Ost"}
	userMappings := []model.ProductMapping{
		{OriginalName: "Mjölk", MappedName: "Mjölk"},
		{OriginalName: "Ost", MappedName: "   "}, // degenerate, does not count
	}
	globalMappings := []model.GlobalProductMapping{
		{OriginalName: "Bröd", MappedName: "Bröd"},
	}

	got := UnmappedNames(observed, userMappings, globalMappings)

	// Exact case-sensitive matching: "mjölk" is distinct from "Mjölk".
	want := []string{"mjölk", "Ost"}
	if len(got) != len(want) {
		t.Fatalf("UnmappedNames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UnmappedNames = %v, want %v", got, want)
		}
	}
}
