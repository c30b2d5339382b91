package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rl1809/inventory-sync/internal/core/service"
)

type FeedOptions struct {
	*RootOptions
	From     int64
	PageSize int
	Limit    int
}

func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print change log entries after a position",
		Long: `Print the change log from the configured store, oldest first.

Entries are read page by page until the end of the log, or until --limit
entries have been printed.

Examples:
  inventory-sync feed
  inventory-sync feed --from 120 --page-size 50
  inventory-sync feed --from 120 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer app.Close()
			return runFeed(cmd.Context(), app.Inventory, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64Var(&opts.From, "from", 0, "print entries after this position")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "entries per read (default 200, max 1000)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many entries (0 means no limit)")

	return cmd
}

func runFeed(ctx context.Context, inventory *service.InventoryService, opts *FeedOptions, w io.Writer) error {
	enc := json.NewEncoder(w)
	from := opts.From
	printed := 0

	for {
		next, entries, err := inventory.ChangeLog(ctx, from, opts.PageSize)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read change log", err)
		}
		if len(entries) == 0 {
			break
		}

		for _, e := range entries {
			if opts.Limit > 0 && printed == opts.Limit {
				return nil
			}
			if opts.Format == "json" {
				if err := enc.Encode(e); err != nil {
					return err
				}
			} else {
				op := e.Operation
				fmt.Fprintf(w, "%d\t%s\t%s\tsku=%d\tdelta=%d\tstore=%s\n",
					e.Position, op.OperationID, op.Type, op.Sku, op.Delta, op.StoreID)
			}
			printed++
		}
		from = next
	}

	if opts.Format != "json" {
		fmt.Fprintf(w, "next position: %d\n", from)
	}
	return nil
}
