package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lindqvist/kvitto/internal/merge"
	"github.com/lindqvist/kvitto/internal/model"
)

// Decision is the user's verdict on one suggested cluster.
type Decision int

const (
	// DecisionSkip leaves the cluster for a future session.
	DecisionSkip Decision = iota
	// DecisionAccept applies the cluster as a group.
	DecisionAccept
	// DecisionIgnore suppresses the cluster permanently.
	DecisionIgnore
)

// ClusterReview pairs a reviewed cluster with the user's decision. For
// accepted clusters Request carries the final name, category, and exclusions.
type ClusterReview struct {
	Request  merge.AcceptRequest
	Cluster  model.Cluster
	Decision Decision
}

// ReviewStats summarizes a review session.
type ReviewStats struct {
	Duration      time.Duration
	TotalClusters int
	Accepted      int
	Edited        int
	Ignored       int
	Skipped       int
}

// Prompter implements the interactive CLI review flow for group suggestions.
type Prompter struct {
	startTime     time.Time
	writer        io.Writer
	reader        *NonBlockingReader
	progressBar   *progressbar.ProgressBar
	stats         ReviewStats
	totalClusters int
	statsMutex    sync.RWMutex
}

// NewPrompter creates a new CLI prompter with the given reader and writer.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader:    NewNonBlockingReader(reader),
		writer:    writer,
		startTime: time.Now(),
	}
}

// SetTotalClusters sets the number of clusters to be reviewed and starts the
// progress bar.
func (p *Prompter) SetTotalClusters(total int) {
	p.totalClusters = total
	p.initProgressBar()
}

// ReviewClusters walks the user through each suggested cluster in turn.
// Decisions made before a cancellation are returned alongside the error, so
// the caller can still apply them.
func (p *Prompter) ReviewClusters(ctx context.Context, userID string, clusters []model.Cluster) ([]ClusterReview, error) {
	reviews := make([]ClusterReview, 0, len(clusters))

	for i, cluster := range clusters {
		if _, err := fmt.Fprintf(p.writer, "\n[%d/%d] ", i+1, len(clusters)); err != nil {
			slog.Warn("Failed to write progress", "error", err)
		}

		review, err := p.ReviewCluster(ctx, userID, cluster)
		if err != nil {
			return reviews, err
		}
		reviews = append(reviews, review)
	}

	return reviews, nil
}

// ReviewCluster prompts the user to accept, edit, ignore, or skip one
// suggested cluster.
func (p *Prompter) ReviewCluster(ctx context.Context, userID string, cluster model.Cluster) (ClusterReview, error) {
	select {
	case <-ctx.Done():
		return ClusterReview{}, ctx.Err()
	default:
	}

	p.updateProgress()

	content := p.formatCluster(cluster)
	if _, err := fmt.Fprintln(p.writer, RenderBox("Suggested Group", content)); err != nil {
		return ClusterReview{}, fmt.Errorf("failed to write cluster box: %w", err)
	}

	options := fmt.Sprintf("  [A] Accept as %s\n", SuccessStyle.Render(cluster.SuggestedName)) +
		"  [E] Edit the group name\n" +
		"  [X] Accept, but leave some products out\n" +
		"  [I] Ignore this suggestion permanently\n" +
		"  [S] Skip for now\n"
	if _, err := fmt.Fprintln(p.writer, options); err != nil {
		return ClusterReview{}, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice [A/E/X/I/S]", []string{"a", "e", "x", "i", "s"})
	if err != nil {
		return ClusterReview{}, err
	}

	review := ClusterReview{Cluster: cluster}

	switch choice {
	case "a":
		review.Decision = DecisionAccept
		review.Request = merge.AcceptRequest{
			UserID:    userID,
			FinalName: cluster.SuggestedName,
			Cluster:   cluster,
		}
		p.incrementStats(DecisionAccept, false)
	case "e":
		name, err := p.promptGroupName(ctx, cluster.SuggestedName)
		if err != nil {
			return ClusterReview{}, err
		}
		review.Decision = DecisionAccept
		review.Request = merge.AcceptRequest{
			UserID:    userID,
			FinalName: name,
			Cluster:   cluster,
		}
		p.incrementStats(DecisionAccept, true)
	case "x":
		excluded, err := p.promptExclusions(ctx, cluster.Members)
		if err != nil {
			return ClusterReview{}, err
		}
		review.Decision = DecisionAccept
		review.Request = merge.AcceptRequest{
			UserID:    userID,
			FinalName: cluster.SuggestedName,
			Excluded:  excluded,
			Cluster:   cluster,
		}
		p.incrementStats(DecisionAccept, true)
	case "i":
		review.Decision = DecisionIgnore
		review.Request = merge.AcceptRequest{
			UserID:  userID,
			Cluster: cluster,
		}
		p.incrementStats(DecisionIgnore, false)
		if _, err := fmt.Fprintln(p.writer, FormatInfo("Suggestion will not come back.")); err != nil {
			slog.Warn("Failed to write ignore confirmation", "error", err)
		}
	case "s":
		review.Decision = DecisionSkip
		p.incrementStats(DecisionSkip, false)
	}

	return review, nil
}

// PromptCategory asks for an explicit category. Used when the cluster's
// members carry conflicting line item categories and a default cannot be
// derived.
func (p *Prompter) PromptCategory(ctx context.Context, distinct []string) (string, error) {
	msg := fmt.Sprintf("Members span several categories: %s", strings.Join(distinct, ", "))
	if _, err := fmt.Fprintln(p.writer, FormatWarning(msg)); err != nil {
		return "", fmt.Errorf("failed to write category warning: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprint(p.writer, FormatPrompt("Category for the group")); err != nil {
			return "", fmt.Errorf("failed to write category prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if input == "" {
			if _, err := fmt.Fprintln(p.writer, FormatError("Category cannot be empty. Please try again.")); err != nil {
				slog.Warn("Failed to write empty category error", "error", err)
			}
			continue
		}
		return input, nil
	}
}

// GetReviewStats returns statistics about the review session.
func (p *Prompter) GetReviewStats() ReviewStats {
	p.statsMutex.RLock()
	defer p.statsMutex.RUnlock()

	stats := p.stats
	stats.Duration = time.Since(p.startTime)
	return stats
}

// ShowCompletion displays the completion summary to the user.
func (p *Prompter) ShowCompletion() {
	if p.progressBar != nil {
		if err := p.progressBar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
		if _, err := fmt.Fprintln(p.writer); err != nil {
			slog.Warn("Failed to write newline", "error", err)
		}
	}

	stats := p.GetReviewStats()

	summary := fmt.Sprintf("%s Review Complete!\n\n", ReceiptIcon) +
		fmt.Sprintf("  • Suggestions reviewed: %d\n", stats.TotalClusters) +
		fmt.Sprintf("  • Accepted: %d (%d with edits)\n", stats.Accepted, stats.Edited) +
		fmt.Sprintf("  • Ignored: %d\n", stats.Ignored) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Time taken: %s\n", stats.Duration.Round(time.Second))

	if _, err := fmt.Fprintln(p.writer, RenderBox("Group Review", summary)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}

func (p *Prompter) initProgressBar() {
	p.progressBar = progressbar.NewOptions(p.totalClusters,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing suggestions...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (p *Prompter) updateProgress() {
	if p.progressBar != nil {
		if err := p.progressBar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

func (p *Prompter) formatCluster(cluster model.Cluster) string {
	header := TitleStyle.Render(fmt.Sprintf("Suggested name: %s", cluster.SuggestedName))

	details := fmt.Sprintf("%s Confidence: %.0f%%\n", RobotIcon, cluster.Score*100)
	if cluster.Reasoning != "" {
		details += fmt.Sprintf("%s %s\n", InfoIcon, cluster.Reasoning)
	}

	members := fmt.Sprintf("\n%s Products (%d):\n", GroupIcon, len(cluster.Members))
	for i, m := range cluster.Members {
		members += fmt.Sprintf("  %d. %s\n", i+1, m)
	}

	return header + "\n\n" + details + members
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			if err == io.EOF {
				return "", fmt.Errorf("input terminated")
			}
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func (p *Prompter) promptGroupName(ctx context.Context, suggestion string) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		prompt := fmt.Sprintf("Group name [%s]", suggestion)
		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write name prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if input == "" {
			return suggestion, nil
		}
		return input, nil
	}
}

// promptExclusions asks for a comma-separated list of member numbers to leave
// out. Leaving all members out is rejected since the accept would be empty.
func (p *Prompter) promptExclusions(ctx context.Context, members []string) (map[string]bool, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if _, err := fmt.Fprint(p.writer, FormatPrompt("Numbers to leave out (e.g. 1,3)")); err != nil {
			return nil, fmt.Errorf("failed to write exclusion prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return nil, err
		}

		excluded, err := parseExclusions(input, members)
		if err != nil {
			if _, werr := fmt.Fprintln(p.writer, FormatError(err.Error())); werr != nil {
				slog.Warn("Failed to write exclusion error", "error", werr)
			}
			continue
		}
		return excluded, nil
	}
}

func parseExclusions(input string, members []string) (map[string]bool, error) {
	excluded := make(map[string]bool)
	if strings.TrimSpace(input) == "" {
		return excluded, nil
	}

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > len(members) {
			return nil, fmt.Errorf("invalid product number: %s", part)
		}
		excluded[members[n-1]] = true
	}

	if len(excluded) >= len(members) {
		return nil, fmt.Errorf("cannot leave out every product")
	}
	return excluded, nil
}

func (p *Prompter) incrementStats(decision Decision, edited bool) {
	p.statsMutex.Lock()
	defer p.statsMutex.Unlock()

	p.stats.TotalClusters++

	switch decision {
	case DecisionAccept:
		p.stats.Accepted++
		if edited {
			p.stats.Edited++
		}
	case DecisionIgnore:
		p.stats.Ignored++
	case DecisionSkip:
		p.stats.Skipped++
	}
}
