package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lindqvist/kvitto/internal/cli"
	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/model"
)

func importItemsCmd() *cobra.Command {
	var receiptID string

	cmd := &cobra.Command{
		Use:   "import-items <file.json>",
		Short: "Import extracted receipt line items",
		Long: `Import a JSON array of extracted line items. The extraction output is
loosely typed; prices and quantities arrive as numbers or strings and are
coerced at this boundary. Rows without a name are skipped with a warning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			userID, err := currentUser()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path) // #nosec G304 -- user-supplied import path
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			var raw []map[string]any
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
			if len(raw) == 0 {
				fmt.Println(cli.InfoStyle.Render("No line items in file."))
				return nil
			}

			if receiptID == "" {
				receiptID = uuid.NewString()
			}

			bar := progressbar.NewOptions(len(raw),
				progressbar.OptionSetWriter(os.Stdout),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Importing line items..."),
			)

			items := make([]model.ReceiptLineItem, 0, len(raw))
			skipped := 0
			for _, record := range raw {
				_ = bar.Add(1)

				item, err := model.ParseLineItem(record)
				if err != nil {
					skipped++
					common.LogError(err, "Skipping malformed line item", common.Fields{"receipt": receiptID})
					continue
				}
				item.UserID = userID
				item.ReceiptID = receiptID
				if item.PurchasedAt.IsZero() {
					item.PurchasedAt = time.Now()
				}
				items = append(items, item)
			}
			fmt.Println()

			if len(items) == 0 {
				return fmt.Errorf("no valid line items in %s (%d skipped)", path, skipped)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SaveLineItems(ctx, items); err != nil {
				return fmt.Errorf("failed to save line items: %w", err)
			}

			msg := fmt.Sprintf("Imported %d line items", len(items))
			if skipped > 0 {
				msg += fmt.Sprintf(" (%d skipped)", skipped)
			}
			fmt.Println(cli.FormatSuccess(msg))
			return nil
		},
	}

	cmd.Flags().StringVar(&receiptID, "receipt", "", "receipt ID to attach the items to (generated if empty)")

	return cmd
}
