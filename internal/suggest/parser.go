package suggest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/model"
)

// parseSuggestions extracts clusters from the suggestion service's message
// content. Groups with fewer than two members are dropped; confidence is
// clamped to 0-100 and scaled to a 0-1 score.
func parseSuggestions(content string) ([]model.Cluster, error) {
	var jsonResp struct {
		Groups []struct {
			Name       string   `json:"name"`
			Reasoning  string   `json:"reasoning"`
			Members    []string `json:"members"`
			Confidence float64  `json:"confidence"`
		} `json:"groups"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidSuggestion, err)
	}

	clusters := make([]model.Cluster, 0, len(jsonResp.Groups))
	for _, g := range jsonResp.Groups {
		members := dedupeMembers(g.Members)
		if len(members) < 2 || g.Name == "" {
			continue
		}

		confidence := g.Confidence
		if confidence < 0 {
			confidence = 0
		} else if confidence > 100 {
			confidence = 100
		}

		clusters = append(clusters, model.Cluster{
			SuggestedName: g.Name,
			Reasoning:     g.Reasoning,
			Members:       members,
			Score:         confidence / 100.0,
		})
	}

	return clusters, nil
}

func dedupeMembers(members []string) []string {
	seen := make(map[string]bool, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// cleanMarkdownWrapper strips a markdown code fence that some models wrap
// around JSON despite being told not to.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		} else {
			content = strings.TrimPrefix(content, "```json")
			content = strings.TrimPrefix(content, "```")
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	return strings.TrimSpace(content)
}
