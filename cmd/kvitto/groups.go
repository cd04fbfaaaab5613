package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lindqvist/kvitto/internal/cli"
	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/merge"
	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/service"
)

func groupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage product groups",
		Long:  `List, rename, merge, categorize, and remove product groups.`,
	}

	cmd.AddCommand(groupsListCmd())
	cmd.AddCommand(groupsRenameCmd())
	cmd.AddCommand(groupsMergeCmd())
	cmd.AddCommand(groupsCategorizeCmd())
	cmd.AddCommand(groupsRemoveCmd())

	return cmd
}

func groupsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all product groups",
		Long:  `Display every product group visible to the user, including shared global groups.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			groups, err := store.ListGroups(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list groups: %w", err)
			}

			if len(groups) == 0 {
				fmt.Println(cli.InfoStyle.Render("No groups yet. Run 'kvitto suggest' to build some."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("Group"),
				headerStyle.Render("Category"),
				headerStyle.Render("Source"),
				headerStyle.Render("Products"),
				headerStyle.Render("Purchases"),
				headerStyle.Render("Spend"))

			for _, g := range groups {
				category := g.Category
				if category == "" {
					category = cli.SubtleStyle.Render("(none)")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\n",
					g.Name, category, g.Source, len(g.Members), g.PurchaseCount, g.TotalSpend)
			}

			return nil
		},
	}
}

func groupsRenameCmd() *cobra.Command {
	var allowGlobal bool

	cmd := &cobra.Command{
		Use:   "rename <old-name> <new-name>",
		Short: "Rename a product group",
		Long: `Rename a group everywhere it appears. User rows always follow; rows in the
shared global layer are only touched with --allow-global.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			oldName, newName := args[0], args[1]

			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			orchestrator := merge.NewWithConfig(store, merge.Config{
				AllowGlobalWrites: allowGlobalWrites(allowGlobal),
				ApplyConcurrency:  4,
			})

			result, err := orchestrator.RenameGroup(ctx, userID, oldName, newName)
			if err != nil {
				return fmt.Errorf("failed to rename group: %w", err)
			}
			if result.Succeeded == 0 && result.Failed == 0 {
				return fmt.Errorf("group %q not found", oldName)
			}

			reportPartial(newName, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowGlobal, "allow-global", false, "also rename rows in the shared global layer")

	return cmd
}

func groupsMergeCmd() *cobra.Command {
	var (
		targetName  string
		allowGlobal bool
	)

	cmd := &cobra.Command{
		Use:   "merge <group>...",
		Short: "Merge several groups into one",
		Long:  `Rewrite every product in the named groups to a single target group.`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if targetName == "" {
				return fmt.Errorf("missing target group: pass --into <name>")
			}

			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			orchestrator := merge.NewWithConfig(store, merge.Config{
				AllowGlobalWrites: allowGlobalWrites(allowGlobal),
				ApplyConcurrency:  4,
			})

			result, err := orchestrator.MergeGroups(ctx, userID, args, targetName)
			if err != nil {
				return fmt.Errorf("failed to merge groups: %w", err)
			}

			reportPartial(targetName, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetName, "into", "", "name of the resulting group")
	cmd.Flags().BoolVar(&allowGlobal, "allow-global", false, "also rewrite rows in the shared global layer")

	return cmd
}

func groupsCategorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <group> <category>",
		Short: "Set the category for a group",
		Long: `Set the category on every product the user has in the group. Products that
come from a shared global group get a personal category override instead;
the global rows themselves are untouched.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			groupName, categoryName := args[0], args[1]

			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			updated, err := store.UpdateCategory(ctx, userID, groupName, categoryName)
			if err != nil {
				return fmt.Errorf("failed to categorize group: %w", err)
			}

			overridden, err := overrideGlobalCategories(ctx, store, userID, groupName, categoryName)
			if err != nil {
				return fmt.Errorf("failed to override global categories: %w", err)
			}

			if updated == 0 && overridden == 0 {
				return fmt.Errorf("no products of yours in group %q", groupName)
			}

			msg := fmt.Sprintf("Set category %q on %d products in %q", categoryName, updated, groupName)
			if overridden > 0 {
				msg += fmt.Sprintf(" (%d via global overrides)", overridden)
			}
			fmt.Println(cli.FormatSuccess(msg))
			return nil
		},
	}
}

func groupsRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "remove <group>",
		Short: "Dissolve a product group",
		Long: `Delete the user's mappings in the group, returning its products to the
ungrouped pool. The receipt line items themselves are untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			groupName := args[0]

			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			mappings, err := store.GetMappingsByGroup(ctx, userID, groupName)
			if err != nil {
				return fmt.Errorf("failed to load group: %w", err)
			}
			if len(mappings) == 0 {
				return fmt.Errorf("group %q not found", groupName)
			}

			if !force {
				fmt.Printf("Dissolve group %q and ungroup %d products? (y/N): ", groupName, len(mappings))
				var response string
				_, _ = fmt.Scanln(&response)
				if strings.ToLower(response) != "y" {
					fmt.Println("Removal cancelled.")
					return nil
				}
			}

			result := dissolveGroup(ctx, store, mappings)
			reportPartial(groupName, result)
			if result.Failed > 0 {
				return fmt.Errorf("%d products could not be ungrouped", result.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}

// overrideGlobalCategories saves a personal category override for every
// global mapping in the group that is not shadowed by one of the user's own
// rows. Returns how many overrides were written.
func overrideGlobalCategories(ctx context.Context, store service.Storage, userID, groupName, category string) (int, error) {
	globals, err := store.GetGlobalMappings(ctx)
	if err != nil {
		return 0, err
	}

	userMappings, err := store.GetMappingsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	shadowed := make(map[string]bool, len(userMappings))
	for i := range userMappings {
		shadowed[userMappings[i].OriginalName] = true
	}

	written := 0
	for i := range globals {
		g := &globals[i]
		if g.MappedName != groupName || shadowed[g.OriginalName] {
			continue
		}
		err := store.SaveOverride(ctx, &model.UserGlobalOverride{
			UserID:           userID,
			GlobalMappingID:  g.ID,
			OverrideCategory: category,
		})
		if err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// dissolveGroup deletes the given user mappings one at a time, so one bad row
// never blocks the rest.
func dissolveGroup(ctx context.Context, store service.Storage, mappings []model.ProductMapping) service.PartialResult {
	var result service.PartialResult

	for i := range mappings {
		ref := model.MappingRef{Scope: model.ScopeUser, ID: mappings[i].ID}
		err := store.DeleteMapping(ctx, ref)
		if errors.Is(err, common.ErrNotFound) {
			// Already gone is fine.
			result.Succeeded++
			continue
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, service.RowError{Name: mappings[i].OriginalName, Err: err})
			continue
		}
		result.Succeeded++
	}

	return result
}
