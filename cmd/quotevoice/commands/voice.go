package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/app"
	"github.com/haivivi/quotevoice/pkg/cli"
	"github.com/haivivi/quotevoice/pkg/voice"
)

var (
	voiceAudioOut string
	synthParams   voice.VoiceParams
	synthSpeaker  string

	prefsParams voice.VoiceParams
	prefsFile   string
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Spoken queries, transcription and speech synthesis",
}

var voiceQueryCmd = &cobra.Command{
	Use:   "query <audio.wav>",
	Short: "Answer a spoken question in the speaker's voice settings",
	Long: `Transcribe the question, identify the speaker, answer from the quote
graph in the speaker's style and synthesize the reply. Unknown speakers
get the default voice. Use --audio to save the spoken reply.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := cli.ReadInput(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			p, err := a.Pipeline(ctx)
			if err != nil {
				return err
			}
			res, err := p.Query(ctx, audio)
			if err != nil {
				return err
			}
			if voiceAudioOut != "" {
				if err := cli.OutputBytes(res.Audio, voiceAudioOut); err != nil {
					return err
				}
				cli.PrintSuccess("wrote %s (%s)", voiceAudioOut, cli.FormatBytes(int64(len(res.Audio))))
			}
			return output(res)
		})
	},
}

var voiceTranscribeCmd = &cobra.Command{
	Use:   "transcribe <audio.wav>",
	Short: "Transcribe speech to text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := cli.ReadInput(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			t, err := a.Transcriber()
			if err != nil {
				return err
			}
			tr, err := t.Transcribe(ctx, audio)
			if err != nil {
				return err
			}
			return output(tr)
		})
	},
}

var voiceSynthesizeCmd = &cobra.Command{
	Use:   "synthesize <text>",
	Short: "Speak text with a speaker's saved voice, or the given one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if voiceAudioOut == "" {
			return fmt.Errorf("--audio is required")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			params := synthParams
			if synthSpeaker != "" {
				prefs, err := a.Preferences()
				if err != nil {
					return err
				}
				if params, err = prefs.Get(ctx, synthSpeaker); err != nil {
					return err
				}
			}
			s, err := a.Synthesizer()
			if err != nil {
				return err
			}
			data, err := s.Synthesize(ctx, args[0], params)
			if err != nil {
				return err
			}
			if err := cli.OutputBytes(data, voiceAudioOut); err != nil {
				return err
			}
			cli.PrintSuccess("wrote %s (%s)", voiceAudioOut, cli.FormatBytes(int64(len(data))))
			return nil
		})
	},
}

var voicePrefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change a speaker's voice preferences",
}

var voicePrefsGetCmd = &cobra.Command{
	Use:   "get <speaker-id>",
	Short: "Show a speaker's voice preferences",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			prefs, err := a.Preferences()
			if err != nil {
				return err
			}
			p, err := prefs.Get(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return output(p)
		})
	},
}

var voicePrefsSetCmd = &cobra.Command{
	Use:   "set <speaker-id>",
	Short: "Change an enrolled speaker's voice preferences",
	Long: `Update the preferences of an enrolled speaker. Values come from --file
(YAML or JSON with voice, accent, pitch, speed and energy keys) and then
from any flag given; everything else keeps its current value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := strings.TrimSpace(args[0])
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			m, err := a.Matcher(ctx)
			if err != nil {
				return err
			}
			ids, err := m.Speakers(ctx)
			if err != nil {
				return err
			}
			if !slices.Contains(ids, id) {
				return fmt.Errorf("speaker %q is not enrolled", id)
			}
			prefs, err := a.Preferences()
			if err != nil {
				return err
			}
			p, err := prefs.Get(ctx, id)
			if err != nil {
				return err
			}
			if prefsFile != "" {
				if err := cli.LoadFile(prefsFile, &p); err != nil {
					return err
				}
			}
			f := cmd.Flags()
			if f.Changed("voice") {
				p.Voice = prefsParams.Voice
			}
			if f.Changed("accent") {
				p.Accent = prefsParams.Accent
			}
			if f.Changed("pitch") {
				p.Pitch = prefsParams.Pitch
			}
			if f.Changed("speed") {
				p.Speed = prefsParams.Speed
			}
			if f.Changed("energy") {
				p.Energy = prefsParams.Energy
			}
			if err := prefs.Set(ctx, id, p); err != nil {
				return err
			}
			saved, err := prefs.Get(ctx, id)
			if err != nil {
				return err
			}
			cli.PrintSuccess("saved preferences for %s", id)
			return output(saved)
		})
	},
}

func init() {
	voiceQueryCmd.Flags().StringVar(&voiceAudioOut, "audio", "", "write the spoken reply to this file")
	voiceSynthesizeCmd.Flags().StringVar(&voiceAudioOut, "audio", "", "output audio file")

	d := voice.DefaultVoiceParams()
	f := voiceSynthesizeCmd.Flags()
	f.StringVar(&synthSpeaker, "speaker", "", "use this speaker's saved voice settings")
	f.StringVar(&synthParams.Voice, "voice", d.Voice, "synthesis voice")
	f.Float64Var(&synthParams.Speed, "speed", d.Speed, "speaking rate multiplier")

	voiceCmd.AddCommand(voiceQueryCmd)
	voiceCmd.AddCommand(voiceTranscribeCmd)
	voiceCmd.AddCommand(voiceSynthesizeCmd)

	pf := voicePrefsSetCmd.Flags()
	pf.StringVarP(&prefsFile, "file", "f", "", "read preferences from a YAML or JSON file")
	pf.StringVar(&prefsParams.Voice, "voice", d.Voice, "synthesis voice")
	pf.StringVar(&prefsParams.Accent, "accent", d.Accent, "reply style (american, uk, french, ...)")
	pf.Float64Var(&prefsParams.Pitch, "pitch", d.Pitch, "pitch multiplier")
	pf.Float64Var(&prefsParams.Speed, "speed", d.Speed, "speaking rate multiplier")
	pf.Float64Var(&prefsParams.Energy, "energy", d.Energy, "energy multiplier")
	voicePrefsCmd.AddCommand(voicePrefsGetCmd)
	voicePrefsCmd.AddCommand(voicePrefsSetCmd)
	voiceCmd.AddCommand(voicePrefsCmd)
}
