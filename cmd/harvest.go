// Package cmd defines and implements the CLI commands for the
// harvester executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zimaxnet/orb-image-harvester/internal/catalog"
)

// newHarvestCmd creates the 'harvest' subcommand, which processes the
// figure catalog and persists one coverage document per figure.
func newHarvestCmd() *cobra.Command {
	var (
		catalogPath string
		category    string
		epoch       string
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs the image acquisition pipeline over the catalog",
		Long: `Loads the figure catalog, resolves the four semantic image slots
for every figure through the source fallback chain, and persists the
resulting coverage documents. Slots no source can fill receive the
curated placeholder, so coverage is total even on a bad network day.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.GetLogger()

			figures, err := catalog.Load(catalogPath, catalog.Filter{
				Category: category,
				Epoch:    epoch,
				Limit:    limit,
			})
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			if len(figures) == 0 {
				return fmt.Errorf("catalog %s matched no figures", catalogPath)
			}
			logger.Info("Catalog loaded", zap.Int("figures", len(figures)))

			pool, err := appInstance.NewPool()
			if err != nil {
				return fmt.Errorf("build worker pool: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := pool.Run(ctx, figures)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run harvest: %w", err)
			}

			logger.Info("Harvest finished",
				zap.String("run_id", summary.RunID),
				zap.Int("figures_ok", summary.FiguresOK),
				zap.Int("figures_failed", summary.FiguresFailed),
				zap.Int("items_accepted", summary.ItemsAccepted),
				zap.Int("fallback_slots", summary.FallbackSlots),
			)
			if summary.FiguresFailed > 0 {
				return fmt.Errorf("%d of %d figures failed to persist", summary.FiguresFailed, summary.FiguresTotal)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "catalog.json", "path to the figure catalog file")
	cmd.Flags().StringVar(&category, "category", "", "only process this category")
	cmd.Flags().StringVar(&epoch, "epoch", "", "only process this epoch")
	cmd.Flags().IntVar(&limit, "limit", 0, "process at most this many figures (0 = all)")

	return cmd
}
