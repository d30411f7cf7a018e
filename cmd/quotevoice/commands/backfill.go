package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/app"
	"github.com/haivivi/quotevoice/pkg/cli"
	"github.com/haivivi/quotevoice/pkg/quote"
)

var (
	backfillBatch      int
	backfillLimit      int
	backfillNoProgress bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed every quote that has no embedding yet",
	Long: `Embed pending quotes in batches and write the vectors back to the
store. Quotes too short to embed are skipped and stay pending. The run
stops at the first embedding or store error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			store, err := a.Quotes(ctx)
			if err != nil {
				return err
			}
			emb, err := a.Embedder()
			if err != nil {
				return err
			}

			var bar *progressbar.ProgressBar
			b := &quote.Backfill{
				Store:     store,
				Embedder:  emb,
				BatchSize: backfillBatch,
				Limit:     backfillLimit,
				Logger:    a.Logger,
			}
			if !backfillNoProgress {
				b.OnProgress = func(p quote.Progress) {
					if bar == nil {
						bar = progressbar.NewOptions(p.Total,
							progressbar.OptionSetWriter(os.Stderr),
							progressbar.OptionSetWidth(40),
							progressbar.OptionShowCount(),
							progressbar.OptionSetDescription("Embedding"),
							progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
						)
					}
					bar.Set(p.Processed)
				}
			}

			p, err := b.Run(ctx)
			if bar != nil {
				bar.Finish()
			}
			if err != nil {
				return fmt.Errorf("backfill stopped after %d quotes: %w", p.Processed, err)
			}
			cli.PrintSuccess("embedded %d quotes, skipped %d", p.Embedded, p.Skipped)
			return output(p)
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the full-text search index in Neo4j",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Neo4j(ctx)
			if err != nil {
				return err
			}
			if n == nil {
				return errors.New("schema: quotes.backend is not neo4j")
			}
			if err := n.EnsureSchema(ctx); err != nil {
				return err
			}
			cli.PrintSuccess("search index %q is ready", a.Config.Neo4j.SearchIndex)
			return nil
		})
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillBatch, "batch", quote.DefaultBatchSize, "quotes per embedding request")
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 0, "stop after this many quotes (0 = all)")
	backfillCmd.Flags().BoolVar(&backfillNoProgress, "no-progress", false, "do not draw a progress bar")
}
