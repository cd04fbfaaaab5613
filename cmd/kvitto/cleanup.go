package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lindqvist/kvitto/internal/cli"
)

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove degenerate mappings and stale ignores",
		Long: `Delete mapping rows whose group name is blank (left behind by older
clients) and ignored suggestions whose products have since been grouped.`,
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

			degenerate, err := store.CleanupDegenerateMappings(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to clean degenerate mappings: %w", err)
			}

			superseded, err := store.DeleteSupersededIgnores(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to clean superseded ignores: %w", err)
			}

			if degenerate == 0 && superseded == 0 {
				fmt.Println(cli.FormatSuccess("Nothing to clean up."))
				return nil
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Removed %d degenerate mappings and %d superseded ignored suggestions",
				degenerate, superseded)))
			return nil
		},
	}
}
