package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rl1809/inventory-sync/internal/core/service"
)

type AdviseOptions struct {
	*RootOptions
	Threshold int
}

func NewAdviseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdviseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "advise",
		Short: "List articles that need restocking",
		Long: `List every article whose available stock is below the threshold,
with the number of recent change log operations on it.

Examples:
  inventory-sync advise
  inventory-sync advise --threshold 30 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer app.Close()

			threshold := opts.Threshold
			if threshold <= 0 {
				threshold = app.Config.Advisory.Threshold
			}
			return runAdvise(cmd.Context(), app.Inventory, service.NewAdvisor(threshold), opts.Format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.Threshold, "threshold", 0, "available stock below which an article is flagged (default from config)")

	return cmd
}

func runAdvise(ctx context.Context, inventory *service.InventoryService, advisor *service.Advisor, format string, w io.Writer) error {
	recs, err := inventory.Advise(ctx, advisor)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to evaluate stock", err)
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Fprintf(w, "no article below threshold %d\n", advisor.Threshold())
		return nil
	}
	for _, r := range recs {
		fmt.Fprintln(w, r.Message)
	}
	return nil
}
