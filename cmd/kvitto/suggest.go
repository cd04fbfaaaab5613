package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lindqvist/kvitto/internal/category"
	"github.com/lindqvist/kvitto/internal/cli"
	"github.com/lindqvist/kvitto/internal/cluster"
	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/merge"
	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/service"
)

func suggestCmd() *cobra.Command {
	var (
		threshold   float64
		useAI       bool
		allowGlobal bool
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest product groups and review them interactively",
		Long: `Build group suggestions for product names that are not grouped yet, then
walk through them one by one: accept, rename, trim, ignore, or skip.

By default suggestions come from local name similarity. With --ai the AI
collaborator service proposes the groups instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("threshold") && viper.IsSet("clustering.threshold") {
				threshold = viper.GetFloat64("clustering.threshold")
			}
			if threshold <= 0 || threshold > 1 {
				return fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
			}
			return runSuggest(cmd.Context(), threshold, useAI, allowGlobal)
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.6, "similarity threshold for local clustering (0-1)")
	cmd.Flags().BoolVar(&useAI, "ai", false, "use the AI collaborator service for suggestions")
	cmd.Flags().BoolVar(&allowGlobal, "allow-global", false, "allow writes to shared global mappings")

	return cmd
}

func runSuggest(ctx context.Context, threshold float64, useAI, allowGlobal bool) error {
	userID, err := currentUser()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	handler := cli.NewInterruptHandler(os.Stdout)
	ctx = handler.HandleInterrupts(ctx)

	candidates, err := buildCandidates(ctx, store, userID, threshold, useAI)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println(cli.FormatSuccess("Nothing to review - all products are grouped."))
		return nil
	}

	orchestrator := merge.NewWithConfig(store, merge.Config{
		AllowGlobalWrites: allowGlobalWrites(allowGlobal),
		ApplyConcurrency:  4,
	})
	prompter := cli.NewPrompter(os.Stdin, os.Stdout)
	prompter.SetTotalClusters(len(candidates))

	for _, candidate := range candidates {
		review, err := prompter.ReviewCluster(ctx, userID, candidate)
		if err != nil {
			if handler.WasInterrupted() {
				break
			}
			return err
		}

		if err := applyReview(ctx, store, orchestrator, prompter, review); err != nil {
			if handler.WasInterrupted() {
				break
			}
			return err
		}
	}

	prompter.ShowCompletion()

	// Ignored suggestions whose members got grouped anyway are dead weight.
	if removed, err := store.DeleteSupersededIgnores(ctx, userID); err == nil && removed > 0 {
		common.LogInfo("Cleaned superseded ignored suggestions", common.Fields{"removed": removed})
	}

	return nil
}

// buildCandidates assembles the clusters worth showing: ungrouped names run
// through the chosen suggestion source, minus ignored and already-applied
// clusters.
func buildCandidates(ctx context.Context, store service.Storage, userID string, threshold float64, useAI bool) ([]model.Cluster, error) {
	counts, err := store.GetObservedNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load observed names: %w", err)
	}
	if len(counts) == 0 {
		return nil, nil
	}

	userMappings, err := store.GetMappingsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	globals, err := store.GetGlobalMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load global mappings: %w", err)
	}

	unmapped := cluster.UnmappedNames(cluster.SortNames(counts), userMappings, globals)
	if len(unmapped) == 0 {
		return nil, nil
	}

	var clusters []model.Cluster
	if useAI {
		client, err := createSuggestClient()
		if err != nil {
			return nil, err
		}
		defer client.Close()

		clusters, err = client.SuggestGroups(ctx, filterCounts(counts, unmapped))
		if err != nil {
			return nil, fmt.Errorf("suggestion service failed: %w", err)
		}
	} else {
		clusters, err = cluster.Build(ctx, unmapped, threshold)
		if err != nil {
			return nil, err
		}
	}

	ignoredKeys, err := store.GetIgnoredKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignored suggestions: %w", err)
	}

	return cluster.Filter(clusters, ignoredKeys, currentGroups(userMappings, globals)), nil
}

// applyReview executes one review decision. A mixed-category rejection is
// resolved by asking the user for an explicit category and re-applying.
func applyReview(ctx context.Context, store service.Storage, orchestrator *merge.Orchestrator, prompter *cli.Prompter, review cli.ClusterReview) error {
	switch review.Decision {
	case cli.DecisionAccept:
		result, err := orchestrator.AcceptCluster(ctx, review.Request)
		if errors.Is(err, common.ErrCategoryRequired) {
			chosen, perr := prompter.PromptCategory(ctx, memberCategories(ctx, store, review.Request))
			if perr != nil {
				return perr
			}
			review.Request.Category = chosen
			result, err = orchestrator.AcceptCluster(ctx, review.Request)
		}
		if err != nil {
			return err
		}
		reportPartial(review.Request.Cluster.SuggestedName, result)
	case cli.DecisionIgnore:
		if err := orchestrator.IgnoreCluster(ctx, review.Request.UserID, review.Cluster); err != nil {
			return fmt.Errorf("failed to record ignored suggestion: %w", err)
		}
	case cli.DecisionSkip:
		// Will come back next session.
	}
	return nil
}

// memberCategories collects the distinct line item categories seen on the
// cluster's non-excluded members, for the category prompt.
func memberCategories(ctx context.Context, store service.Storage, req merge.AcceptRequest) []string {
	aggregates, err := store.GetNameAggregates(ctx, req.UserID)
	if err != nil {
		return nil
	}

	var observed []string
	for _, member := range req.Cluster.Members {
		if req.Excluded[member] {
			continue
		}
		if agg, ok := aggregates[member]; ok {
			observed = append(observed, agg.Categories...)
		}
	}
	return category.StatusOf(observed).Distinct
}

func reportPartial(group string, result service.PartialResult) {
	if result.Ok() {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("Grouped %d products under %q", result.Succeeded, group)))
		return
	}

	fmt.Println(cli.FormatWarning(fmt.Sprintf("Grouped %d of %d products under %q",
		result.Succeeded, result.Succeeded+result.Failed, group)))
	for _, rowErr := range result.Errors {
		fmt.Println(cli.ErrorStyle.Render(fmt.Sprintf("  %s: %v", rowErr.Name, rowErr.Err)))
	}
}

// currentGroups maps each grouped original name to its group, with user rows
// shadowing global ones.
func currentGroups(userMappings []model.ProductMapping, globals []model.GlobalProductMapping) map[string]string {
	groups := make(map[string]string, len(userMappings)+len(globals))
	for i := range globals {
		if globals[i].Grouped() {
			groups[globals[i].OriginalName] = globals[i].MappedName
		}
	}
	for i := range userMappings {
		if userMappings[i].Grouped() {
			groups[userMappings[i].OriginalName] = userMappings[i].MappedName
		}
	}
	return groups
}

// filterCounts keeps the name counts whose names are still unmapped,
// preserving the frequency ordering the suggestion service sees.
func filterCounts(counts []model.NameCount, unmapped []string) []model.NameCount {
	keep := make(map[string]bool, len(unmapped))
	for _, name := range unmapped {
		keep[name] = true
	}

	out := make([]model.NameCount, 0, len(unmapped))
	for _, c := range counts {
		if keep[c.Name] {
			out = append(out, c)
		}
	}
	return out
}
