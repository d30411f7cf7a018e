package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/app"
	"github.com/haivivi/quotevoice/pkg/quote"
	"github.com/haivivi/quotevoice/pkg/rag"
)

var (
	askUser  string
	askStyle string

	searchLimit int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question with the most relevant quotes",
	Long: `Embed the question, rank the quote pool by cosine similarity and let
the LLM answer from the top matches. When nothing is relevant enough a
canned reply in the requested style is returned instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			engine, err := a.Engine(ctx)
			if err != nil {
				return err
			}
			resp, err := engine.Ask(ctx, rag.Request{
				Query:    strings.Join(args, " "),
				Username: askUser,
				Style:    askStyle,
			})
			if err != nil {
				return err
			}
			return output(resp)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Full-text search over the quote graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			store, err := a.Quotes(ctx)
			if err != nil {
				return err
			}
			hits, err := store.Search(ctx, strings.Join(args, " "), searchLimit)
			if err != nil {
				return err
			}
			if hits == nil {
				hits = []quote.Hit{}
			}
			return output(hits)
		})
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Inspect quotes",
}

var quoteGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one quote with all its authors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			store, err := a.Quotes(ctx)
			if err != nil {
				return err
			}
			q, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return output(q)
		})
	},
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "name to address the reply to")
	askCmd.Flags().StringVarP(&askStyle, "style", "s", "", "reply style (american, uk, french, german, ...)")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", quote.DefaultSearchLimit, "maximum number of hits")

	quoteCmd.AddCommand(quoteGetCmd)
}
