package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/app"
)

var (
	greetUser    string
	greetStyle   string
	greetSpeaker string
)

var greetCmd = &cobra.Command{
	Use:   "greet",
	Short: "Print a personalized greeting",
	Long: `Greet a user in a reply style. With --speaker the name is the speaker
id and the style is the speaker's saved accent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if greetSpeaker == "" {
				fmt.Println(a.Greeter().Greeting(greetUser, greetStyle))
				return nil
			}
			p, err := a.Registrar(ctx)
			if err != nil {
				return err
			}
			g, err := p.Greet(ctx, greetSpeaker)
			if err != nil {
				return err
			}
			fmt.Println(g)
			return nil
		})
	},
}

func init() {
	greetCmd.Flags().StringVarP(&greetUser, "user", "u", "", "name to greet")
	greetCmd.Flags().StringVarP(&greetStyle, "style", "s", "", "reply style (american, uk, french, ...)")
	greetCmd.Flags().StringVar(&greetSpeaker, "speaker", "", "greet an enrolled speaker in their saved style")
	greetCmd.MarkFlagsMutuallyExclusive("speaker", "user")
}
