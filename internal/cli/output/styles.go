package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status icons used in text mode.
const (
	IconSuccess = "✓"
	IconFailed  = "✗"
	IconWarning = "!"
	IconSkipped = "-"
)

// Styles holds the lipgloss styles used by text mode. StatusSuccess and
// StatusFailed carry their icon; call String() to render it.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Muted         lipgloss.Style
	Bold          lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Info          lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so the color
// profile of the destination writer is honoured.
func NewStyles(r *lipgloss.Renderer) *Styles {
	green := lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	red := lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}
	yellow := lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	blue := lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"}
	gray := lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"}

	return &Styles{
		Header1:       r.NewStyle().Bold(true).Underline(true),
		Header2:       r.NewStyle().Bold(true).Foreground(blue),
		Muted:         r.NewStyle().Foreground(gray),
		Bold:          r.NewStyle().Bold(true),
		Success:       r.NewStyle().Foreground(green),
		Warning:       r.NewStyle().Foreground(yellow),
		Error:         r.NewStyle().Foreground(red),
		Info:          r.NewStyle().Foreground(blue),
		StatusSuccess: r.NewStyle().Foreground(green).Bold(true).SetString(IconSuccess),
		StatusFailed:  r.NewStyle().Foreground(red).Bold(true).SetString(IconFailed),
	}
}

// FormatHeader returns a markdown heading.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}

// FormatCodeBlock returns a fenced markdown code block.
func FormatCodeBlock(lang, code string) string {
	return "```" + lang + "\n" + strings.TrimRight(code, "\n") + "\n```"
}
