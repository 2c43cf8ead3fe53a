package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	ColorPrimary = lipgloss.Color("#7C3AED")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorAdded   = lipgloss.Color("#10B981")
	ColorRemoved = lipgloss.Color("#EF4444")
	ColorHunk    = lipgloss.Color("#3B82F6")
	ColorNew     = lipgloss.Color("#F59E0B")
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	SubtitleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	ErrorStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorRemoved)
	AddedStyle    = lipgloss.NewStyle().Foreground(ColorAdded)
	RemovedStyle  = lipgloss.NewStyle().Foreground(ColorRemoved)
	HunkStyle     = lipgloss.NewStyle().Foreground(ColorHunk)
	NewStyle      = lipgloss.NewStyle().Foreground(ColorNew)
)

// colorDiff styles each line of a unified diff by its prefix. Styles render
// as plain text when output is not a terminal.
func colorDiff(diff string) string {
	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	for _, line := range lines {
		text, nl := strings.CutSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			text = TitleStyle.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = HunkStyle.Render(text)
		case strings.HasPrefix(text, "+"):
			text = AddedStyle.Render(text)
		case strings.HasPrefix(text, "-"):
			text = RemovedStyle.Render(text)
		}
		b.WriteString(text)
		if nl {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
