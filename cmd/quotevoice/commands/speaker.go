package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/app"
	"github.com/haivivi/quotevoice/pkg/cli"
	"github.com/haivivi/quotevoice/pkg/voice"
)

var (
	speakerThreshold float64
	enrollParams     voice.VoiceParams
)

var speakerCmd = &cobra.Command{
	Use:   "speaker",
	Short: "Enroll and recognize speakers by voice",
	Long: `Manage the speaker table. Audio is a 16-bit PCM WAV file, or - for
stdin. Confidence is (cosine + 1) / 2 in [0, 1]; a speaker is accepted at
or above the threshold (default from speaker.threshold).`,
}

var speakerEnrollCmd = &cobra.Command{
	Use:   "enroll <speaker-id> <audio.wav>",
	Short: "Enroll a speaker, replacing any previous profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := cli.ReadInput(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			p, err := a.Registrar(ctx)
			if err != nil {
				return err
			}
			reg, err := p.Register(ctx, args[0], audio, enrollParams)
			if err != nil {
				return err
			}
			cli.PrintSuccess("enrolled %s", reg.SpeakerID)
			return output(reg)
		})
	},
}

var speakerIdentifyCmd = &cobra.Command{
	Use:   "identify <audio.wav>",
	Short: "Find the enrolled speaker closest to a sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := cli.ReadInput(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, err := a.Matcher(ctx)
			if err != nil {
				return err
			}
			id, err := m.Identify(ctx, audio, threshold(cmd, a))
			if err != nil {
				return err
			}
			if !id.Matched() && id.Closest != "" {
				a.Logger.Debug("no speaker accepted", "closest", id.Closest,
					"confidence", id.ClosestConfidence, "reason", id.Reason)
			}
			return output(id)
		})
	},
}

var speakerVerifyCmd = &cobra.Command{
	Use:   "verify <speaker-id> <audio.wav>",
	Short: "Check a sample against one enrolled speaker",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := cli.ReadInput(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, err := a.Matcher(ctx)
			if err != nil {
				return err
			}
			v, err := m.Verify(ctx, args[0], audio, threshold(cmd, a))
			if err != nil {
				return err
			}
			return output(v)
		})
	},
}

var speakerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled speakers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, err := a.Matcher(ctx)
			if err != nil {
				return err
			}
			ids, err := m.Speakers(ctx)
			if err != nil {
				return err
			}
			return output(ids)
		})
	},
}

var speakerDeleteCmd = &cobra.Command{
	Use:   "delete <speaker-id>",
	Short: "Remove a speaker profile and its voice preferences",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			p, err := a.Registrar(ctx)
			if err != nil {
				return err
			}
			ok, err := p.Unregister(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("speaker %q is not enrolled", args[0])
			}
			cli.PrintSuccess("deleted %s", args[0])
			return nil
		})
	},
}

var speakerReset bool

var speakerResetCmd = &cobra.Command{
	Use:   "reset --yes",
	Short: "Remove every speaker profile and its voice preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !speakerReset {
			return fmt.Errorf("reset removes every enrolled speaker; pass --yes to confirm")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, err := a.Matcher(ctx)
			if err != nil {
				return err
			}
			prefs, err := a.Preferences()
			if err != nil {
				return err
			}
			ids, err := m.Speakers(ctx)
			if err != nil {
				return err
			}
			n, err := m.Reset(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := prefs.Delete(ctx, id); err != nil {
					return err
				}
			}
			cli.PrintSuccess("removed %d speakers", n)
			return output(struct {
				Removed int `json:"removed"`
			}{n})
		})
	},
}

var speakerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of enrolled speakers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, err := a.Matcher(ctx)
			if err != nil {
				return err
			}
			st, err := m.Stats(ctx)
			if err != nil {
				return err
			}
			return output(st)
		})
	},
}

// threshold returns --threshold when given, else the configured one.
func threshold(cmd *cobra.Command, a *app.App) float64 {
	if cmd.Flags().Changed("threshold") {
		return speakerThreshold
	}
	return a.Config.Speaker.Threshold
}

func init() {
	speakerIdentifyCmd.Flags().Float64VarP(&speakerThreshold, "threshold", "t", 0, "acceptance threshold in [0, 1]")
	speakerVerifyCmd.Flags().Float64VarP(&speakerThreshold, "threshold", "t", 0, "acceptance threshold in [0, 1]")

	speakerResetCmd.Flags().BoolVar(&speakerReset, "yes", false, "confirm removing every speaker")

	f := speakerEnrollCmd.Flags()
	d := voice.DefaultVoiceParams()
	f.StringVar(&enrollParams.Voice, "voice", d.Voice, "synthesis voice for replies")
	f.StringVar(&enrollParams.Accent, "accent", d.Accent, "reply style (american, uk, french, ...)")
	f.Float64Var(&enrollParams.Pitch, "pitch", d.Pitch, "pitch multiplier")
	f.Float64Var(&enrollParams.Speed, "speed", d.Speed, "speaking rate multiplier")
	f.Float64Var(&enrollParams.Energy, "energy", d.Energy, "energy multiplier")

	speakerCmd.AddCommand(speakerEnrollCmd)
	speakerCmd.AddCommand(speakerIdentifyCmd)
	speakerCmd.AddCommand(speakerVerifyCmd)
	speakerCmd.AddCommand(speakerListCmd)
	speakerCmd.AddCommand(speakerDeleteCmd)
	speakerCmd.AddCommand(speakerStatsCmd)
	speakerCmd.AddCommand(speakerResetCmd)
}
