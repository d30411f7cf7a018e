// Package cli holds the terminal helpers shared by the quotevoice commands:
// result output (YAML, JSON, raw), input file loading, data paths and
// lipgloss styling for human-readable summaries.
//
//	cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON})
package cli
