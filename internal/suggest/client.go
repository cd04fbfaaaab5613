// Package suggest talks to the receipt platform's AI collaborator service
// to obtain product grouping suggestions. The client speaks a chat-completion
// style JSON API and normalizes the response into model.Cluster values, so
// downstream filtering and merging cannot tell AI suggestions apart from
// locally built ones.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/model"
)

// Config holds the connection settings for the suggestion service.
type Config struct {
	URL               string
	APIKey            string
	Model             string
	Temperature       float64
	MaxTokens         int
	RequestsPerMinute int
}

// Client is an HTTP client for the suggestion service. It implements
// service.SuggestionSource.
type Client struct {
	httpClient  *http.Client
	limiter     *rateLimiter
	url         string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

const systemPrompt = "You group noisy receipt product names that refer to the same real-world product. " +
	"You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, " +
	"markdown formatting, or commentary before or after the JSON. " +
	"Start your response directly with { and end with }."

// NewClient creates a suggestion service client from the configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: suggester URL", common.ErrMissingConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: suggester API key", common.ErrMissingConfig)
	}

	model := cfg.Model
	if model == "" {
		model = "grouping-v2"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	return &Client{
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		limiter:     newRateLimiter(cfg.RequestsPerMinute),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// SuggestGroups asks the suggestion service for candidate clusters covering
// the given observed names. Transient failures are retried with backoff.
func (c *Client) SuggestGroups(ctx context.Context, names []model.NameCount) ([]model.Cluster, error) {
	if len(names) == 0 {
		return nil, nil
	}

	if err := c.limiter.wait(ctx); err != nil {
		return nil, err
	}

	var clusters []model.Cluster
	err := common.WithRetry(ctx, func() error {
		var reqErr error
		clusters, reqErr = c.suggestOnce(ctx, names)
		return reqErr
	}, common.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     15 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return clusters, nil
}

func (c *Client) suggestOnce(ctx context.Context, names []model.NameCount) ([]model.Cluster, error) {
	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": systemPrompt,
			},
			{
				"role":    "user",
				"content": buildPrompt(names),
			},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSuggesterUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.ErrRateLimit
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d: %s", common.ErrSuggesterUnavailable, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("suggestion API error (status %d): %s", resp.StatusCode, string(body)),
			Retryable: false,
		}
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion choices returned", common.ErrInvalidSuggestion)
	}

	return parseSuggestions(response.Choices[0].Message.Content)
}

// buildPrompt renders the observed names, most frequent first, into the
// grouping request.
func buildPrompt(names []model.NameCount) string {
	var sb strings.Builder
	sb.WriteString("Group the following receipt product names. Names that refer to the same ")
	sb.WriteString("product in different sizes, spellings, or abbreviations belong together. ")
	sb.WriteString("Leave genuinely distinct products out of the groups entirely.\n\n")
	sb.WriteString("Respond with JSON: {\"groups\": [{\"name\": \"<canonical display name>\", ")
	sb.WriteString("\"reasoning\": \"<one sentence>\", \"members\": [\"<original name>\", ...], ")
	sb.WriteString("\"confidence\": <0-100>}]}\n\nProduct names (with purchase counts):\n")

	for _, n := range names {
		fmt.Fprintf(&sb, "- %s (%d)\n", n.Name, n.Count)
	}
	return sb.String()
}

// chatResponse is the wire shape of the suggestion service response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Close releases the rate limiter's refill goroutine.
func (c *Client) Close() {
	c.limiter.Close()
}
