package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindqvist/kvitto/internal/model"
)

func testCluster() model.Cluster {
	return model.Cluster{
		SuggestedName: "Mjölk",
		Reasoning:     "same dairy product in different sizes",
		Members:       []string{"Mjölk", "Mjölk 1L", "Mjölk 1,5L"},
		Score:         0.9,
	}
}

func TestPrompter_ReviewCluster(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantDecision Decision
		wantName     string
		wantExcluded map[string]bool
	}{
		{
			name:         "accept suggestion",
			input:        "a\n",
			wantDecision: DecisionAccept,
			wantName:     "Mjölk",
		},
		{
			name:         "edit group name",
			input:        "e\nMjölk & Fil\n",
			wantDecision: DecisionAccept,
			wantName:     "Mjölk & Fil",
		},
		{
			name:         "edit accepts default on empty input",
			input:        "e\n\n",
			wantDecision: DecisionAccept,
			wantName:     "Mjölk",
		},
		{
			name:         "exclude members",
			input:        "x\n2\n",
			wantDecision: DecisionAccept,
			wantName:     "Mjölk",
			wantExcluded: map[string]bool{"Mjölk 1L": true},
		},
		{
			name:         "ignore suggestion",
			input:        "i\n",
			wantDecision: DecisionIgnore,
		},
		{
			name:         "skip suggestion",
			input:        "s\n",
			wantDecision: DecisionSkip,
		},
		{
			name:         "invalid choice then valid",
			input:        "z\na\n",
			wantDecision: DecisionAccept,
			wantName:     "Mjölk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &output)

			review, err := p.ReviewCluster(context.Background(), "user-1", testCluster())
			require.NoError(t, err)

			assert.Equal(t, tt.wantDecision, review.Decision)
			if tt.wantDecision == DecisionAccept {
				assert.Equal(t, tt.wantName, review.Request.FinalName)
			}
			if tt.wantDecision != DecisionSkip {
				// Ignores need the user ID too, to record the dismissal.
				assert.Equal(t, "user-1", review.Request.UserID)
			}
			if tt.wantExcluded != nil {
				assert.Equal(t, tt.wantExcluded, review.Request.Excluded)
			}
		})
	}
}

func TestPrompter_ReviewCluster_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var output bytes.Buffer
	p := NewPrompter(strings.NewReader("a\n"), &output)

	_, err := p.ReviewCluster(ctx, "user-1", testCluster())
	require.Error(t, err)
}

func TestPrompter_ReviewClusters_ReturnsDecisionsBeforeCancel(t *testing.T) {
	var output bytes.Buffer
	// Second read blocks on an exhausted reader; EOF ends the session.
	p := NewPrompter(strings.NewReader("a\n"), &output)

	clusters := []model.Cluster{testCluster(), testCluster()}
	reviews, err := p.ReviewClusters(context.Background(), "user-1", clusters)
	require.Error(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, DecisionAccept, reviews[0].Decision)
}

func TestPrompter_PromptCategory(t *testing.T) {
	var output bytes.Buffer
	p := NewPrompter(strings.NewReader("\nmejeri\n"), &output)

	category, err := p.PromptCategory(context.Background(), []string{"mejeri", "drycker"})
	require.NoError(t, err)

	// Empty first answer is rejected, second accepted
	assert.Equal(t, "mejeri", category)
	assert.Contains(t, output.String(), "mejeri, drycker")
}

func TestPrompter_Stats(t *testing.T) {
	var output bytes.Buffer
	p := NewPrompter(strings.NewReader("a\ni\ns\ne\nNytt namn\n"), &output)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := p.ReviewCluster(ctx, "user-1", testCluster())
		require.NoError(t, err)
	}

	stats := p.GetReviewStats()
	assert.Equal(t, 4, stats.TotalClusters)
	assert.Equal(t, 2, stats.Accepted)
	assert.Equal(t, 1, stats.Edited)
	assert.Equal(t, 1, stats.Ignored)
	assert.Equal(t, 1, stats.Skipped)
}

func TestParseExclusions(t *testing.T) {
	members := []string{"a", "b", "c"}

	tests := []struct {
		want    map[string]bool
		name    string
		input   string
		wantErr bool
	}{
		{name: "empty keeps all", input: "", want: map[string]bool{}},
		{name: "single", input: "2", want: map[string]bool{"b": true}},
		{name: "multiple with spaces", input: "1, 3", want: map[string]bool{"a": true, "c": true}},
		{name: "out of range", input: "4", wantErr: true},
		{name: "not a number", input: "b", wantErr: true},
		{name: "all excluded", input: "1,2,3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExclusions(tt.input, members)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
