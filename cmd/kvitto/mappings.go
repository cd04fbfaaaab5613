package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lindqvist/kvitto/internal/cli"
	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/model"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage individual product mappings",
		Long:  `List, add, and delete the raw name-to-group mappings behind the groups.`,
	}

	cmd.AddCommand(mappingsListCmd())
	cmd.AddCommand(mappingsAddCmd())
	cmd.AddCommand(mappingsDeleteCmd())

	return cmd
}

func mappingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the user's product mappings",
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

			mappings, err := store.GetMappingsForUser(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to list mappings: %w", err)
			}

			if len(mappings) == 0 {
				fmt.Println(cli.InfoStyle.Render("No mappings yet. Run 'kvitto suggest' to build some."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				headerStyle.Render("Product"),
				headerStyle.Render("Group"),
				headerStyle.Render("Category"))

			for i := range mappings {
				group := mappings[i].MappedName
				if !mappings[i].Grouped() {
					group = cli.SubtleStyle.Render("(ungrouped)")
				}
				category := mappings[i].Category
				if category == "" {
					category = cli.SubtleStyle.Render("(none)")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", mappings[i].OriginalName, group, category)
			}

			return nil
		},
	}
}

func mappingsAddCmd() *cobra.Command {
	var (
		categoryName string
		overwrite    bool
	)

	cmd := &cobra.Command{
		Use:   "add <original-name> <group-name>",
		Short: "Map a product name to a group",
		Long: `Map one raw product name to a group. Adding a name that is already mapped
fails unless --overwrite is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			originalName, groupName := args[0], args[1]

			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			mapping := &model.ProductMapping{
				UserID:       userID,
				OriginalName: originalName,
				MappedName:   groupName,
				Category:     categoryName,
			}

			if overwrite {
				err = store.SaveMapping(ctx, mapping)
			} else {
				err = store.CreateMapping(ctx, mapping)
			}
			if errors.Is(err, common.ErrConflict) {
				return fmt.Errorf("%q is already mapped; pass --overwrite to replace it", originalName)
			}
			if err != nil {
				return fmt.Errorf("failed to add mapping: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Mapped %q to %q", originalName, groupName)))
			return nil
		},
	}

	cmd.Flags().StringVar(&categoryName, "category", "", "category for the mapping")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing mapping for the name")

	return cmd
}

func mappingsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <original-name>",
		Short: "Delete a product mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			originalName := args[0]

			userID, err := currentUser()
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			mapping, err := store.GetMapping(ctx, userID, originalName)
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("no mapping for %q", originalName)
			}
			if err != nil {
				return fmt.Errorf("failed to load mapping: %w", err)
			}

			ref := model.MappingRef{Scope: model.ScopeUser, ID: mapping.ID}
			if err := store.DeleteMapping(ctx, ref); err != nil {
				return fmt.Errorf("failed to delete mapping: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted mapping for %q", originalName)))
			return nil
		},
	}
}
