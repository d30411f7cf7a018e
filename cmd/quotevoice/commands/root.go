package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/app"
	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/config"
	"github.com/haivivi/quotevoice/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
	outputFile   string

	globalConfig  *config.Config
	configLoadErr error

	// testOverrides replaces backends in tests.
	testOverrides *app.Overrides
)

var rootCmd = &cobra.Command{
	Use:   "quotevoice",
	Short: "Quote assistant with voice queries and speaker recognition",
	Long: `quotevoice - answer questions with quotes from a graph of famous quotations.

A question is embedded, ranked against the stored quote embeddings, and
the best matches are handed to an LLM that replies in the asker's style.
Spoken questions are transcribed, the speaker is identified from their
voice, and the reply is synthesized with their saved voice settings.

Configuration is read from the OS config directory:
  macOS:   ~/Library/Application Support/quotevoice/config.yaml
  Linux:   ~/.config/quotevoice/config.yaml
  Windows: %AppData%/quotevoice/config.yaml

Examples:
  quotevoice ask "what is love?" --user Ann --style uk
  quotevoice search "imagination"
  quotevoice backfill --batch 50
  quotevoice speaker enroll alice alice.wav
  quotevoice voice query question.wav -o json`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is the OS config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml, json or raw")
	rootCmd.PersistentFlags().StringVar(&outputFile, "out", "", "write output to a file instead of stdout")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(greetCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(speakerCmd)
	rootCmd.AddCommand(voiceCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	globalConfig, configLoadErr = nil, nil
	cfg, err := config.Load(cfgFile)
	if err != nil {
		// Reported by GetConfig so that commands like 'version' still run.
		configLoadErr = err
	} else {
		globalConfig = cfg
	}

	level := slog.LevelInfo
	if cfg != nil {
		level = parseLevel(cfg.LogLevel)
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		return nil, fmt.Errorf("config not loaded")
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// newApp builds the component container for one command.
func newApp() (*app.App, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	var ov app.Overrides
	if testOverrides != nil {
		ov = *testOverrides
	}
	return app.New(cfg, slog.Default(), ov), nil
}

// withApp runs fn with a fresh App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}()
	return fn(cmd.Context(), a)
}

// output writes result in the selected format.
func output(result any) error {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{Format: format, File: outputFile})
}
