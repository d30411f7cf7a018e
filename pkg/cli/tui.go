package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Good    lipgloss.Color
	Bad     lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Good:    lipgloss.Color("#3fb950"),
	Bad:     lipgloss.Color("#f85149"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Help    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Failure lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Help:    lipgloss.NewStyle().Foreground(t.Dim),
		Success: lipgloss.NewStyle().Foreground(t.Good),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#d29922")),
		Failure: lipgloss.NewStyle().Bold(true).Foreground(t.Bad),
	}
}

// DefaultStyles are built from DefaultTheme.
var DefaultStyles = NewStyles(DefaultTheme)

// Check is one line of a health report.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// DetailWidth is the number of cells Report keeps of a check's detail.
const DetailWidth = 72

// Report renders a titled list of checks, one per line, cutting long
// details to DetailWidth:
//
//	Health
//	  ✓ neo4j      bolt://localhost:7687
//	  ✗ ollama     llama3.2:3b not pulled
func Report(s Styles, title string, checks []Check) string {
	width := 0
	for _, c := range checks {
		width = max(width, lipgloss.Width(c.Name))
	}
	var b strings.Builder
	b.WriteString(s.Title.Render(title))
	b.WriteByte('\n')
	for _, c := range checks {
		mark := s.Success.Render("✓")
		if !c.OK {
			mark = s.Failure.Render("✗")
		}
		name := s.Label.Render(c.Name + strings.Repeat(" ", width-lipgloss.Width(c.Name)))
		fmt.Fprintf(&b, "  %s %s  %s\n", mark, name, s.Help.Render(Truncate(c.Detail, DetailWidth)))
	}
	return b.String()
}

// Truncate shortens s to width display cells, handling multi-byte
// characters, and marks the cut with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	cur := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if cur+w > width-1 {
			return string(runes[:i]) + "…"
		}
		cur += w
	}
	return s
}
