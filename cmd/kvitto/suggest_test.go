package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindqvist/kvitto/internal/cli"
	"github.com/lindqvist/kvitto/internal/merge"
	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/testutil"
)

func TestFilterCounts(t *testing.T) {
	counts := []model.NameCount{
		{Name: "Mjölk 1L", Count: 4},
		{Name: "Kaffe", Count: 3},
		{Name: "Mjölk 1,5L", Count: 1},
	}

	got := filterCounts(counts, []string{"Mjölk 1L", "Mjölk 1,5L"})

	require.Len(t, got, 2)
	assert.Equal(t, "Mjölk 1L", got[0].Name)
	assert.Equal(t, 4, got[0].Count)
	assert.Equal(t, "Mjölk 1,5L", got[1].Name)
}

func TestCurrentGroups_UserShadowsGlobal(t *testing.T) {
	user := []model.ProductMapping{
		{OriginalName: "Mjölk 1L", MappedName: "Mjölk"},
		{OriginalName: "Kaffe", MappedName: "   "}, // degenerate, not grouped
	}
	globals := []model.GlobalProductMapping{
		{OriginalName: "Mjölk 1L", MappedName: "Mejeri"},
		{OriginalName: "Te", MappedName: "Te & Kaffe"},
	}

	groups := currentGroups(user, globals)

	assert.Equal(t, "Mjölk", groups["Mjölk 1L"])
	assert.Equal(t, "Te & Kaffe", groups["Te"])
	_, ok := groups["Kaffe"]
	assert.False(t, ok, "degenerate mapping should not count as grouped")
}

func TestBuildCandidates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	db.SeedLineItems("user-1",
		model.ReceiptLineItem{Name: "Filmjölk 3%", Price: 18.5, Quantity: 1, PurchasedAt: now},
		model.ReceiptLineItem{Name: "FILMJÖLK 3 PROCENT", Price: 18.5, Quantity: 1, PurchasedAt: now},
		model.ReceiptLineItem{Name: "Tandkräm", Price: 25, Quantity: 1, PurchasedAt: now},
	)

	candidates, err := buildCandidates(ctx, db.Storage, "user-1", 0.6, false)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.ElementsMatch(t, []string{"Filmjölk 3%", "FILMJÖLK 3 PROCENT"}, candidates[0].Members)
}

func TestBuildCandidates_MappedNamesExcluded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	db.SeedLineItems("user-1",
		model.ReceiptLineItem{Name: "Mjölk 1L", Price: 15.9, Quantity: 1, PurchasedAt: now},
		model.ReceiptLineItem{Name: "Mjölk 1,5L", Price: 19.5, Quantity: 1, PurchasedAt: now},
	)
	db.SeedMapping("user-1", "Mjölk 1L", "Mjölk", "mejeri")
	db.SeedMapping("user-1", "Mjölk 1,5L", "Mjölk", "mejeri")

	candidates, err := buildCandidates(ctx, db.Storage, "user-1", 0.6, false)
	require.NoError(t, err)
	assert.Empty(t, candidates, "already grouped names should produce no suggestions")
}

func TestApplyReview_IgnoreRecordsSuggestion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	clusterUnderReview := model.Cluster{
		SuggestedName: "Mjölk",
		Members:       []string{"Mjölk 1L", "Mjölk 1,5L"},
		Score:         0.7,
	}

	var output bytes.Buffer
	prompter := cli.NewPrompter(strings.NewReader("i\n"), &output)
	review, err := prompter.ReviewCluster(ctx, "user-1", clusterUnderReview)
	require.NoError(t, err)
	require.Equal(t, cli.DecisionIgnore, review.Decision)

	orchestrator := merge.New(db.Storage)
	err = applyReview(ctx, db.Storage, orchestrator, prompter, review)
	require.NoError(t, err)

	keys, err := db.Storage.GetIgnoredKeys(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, keys[clusterUnderReview.Key()], "dismissal should be stored under the user")
}

func TestBuildCandidates_IgnoredSuggestionSuppressed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	db.SeedLineItems("user-1",
		model.ReceiptLineItem{Name: "Mjölk 1L", Price: 15.9, Quantity: 1, PurchasedAt: now},
		model.ReceiptLineItem{Name: "Mjölk 1,5L", Price: 19.5, Quantity: 1, PurchasedAt: now},
	)

	candidates, err := buildCandidates(ctx, db.Storage, "user-1", 0.6, false)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	err = db.Storage.AddIgnoredSuggestion(ctx, &model.IgnoredSuggestion{
		UserID:   "user-1",
		Products: candidates[0].Members,
	})
	require.NoError(t, err)

	candidates, err = buildCandidates(ctx, db.Storage, "user-1", 0.6, false)
	require.NoError(t, err)
	assert.Empty(t, candidates, "ignored suggestion must never resurface")
}
