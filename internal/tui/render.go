package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/thruflo/conductor/internal/heartbeat"
	"github.com/thruflo/conductor/internal/workflow"
)

const ellipsis = "…"

// Palette
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#FFB74D"}
	colorError   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9E9E9E"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#64B5F6"}
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	accentStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
	noteStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
)

// ToneStyle returns the style for a status tone.
func ToneStyle(t workflow.Tone) lipgloss.Style {
	switch t {
	case workflow.ToneSuccess:
		return lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	case workflow.ToneWarning:
		return lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	case workflow.ToneError:
		return lipgloss.NewStyle().Foreground(colorError).Bold(true)
	default:
		return titleStyle
	}
}

// HeartbeatStyle colours the staleness hint.
func HeartbeatStyle(l heartbeat.Level) lipgloss.Style {
	switch l {
	case heartbeat.LevelStale:
		return lipgloss.NewStyle().Foreground(colorError)
	case heartbeat.LevelRecent:
		return lipgloss.NewStyle().Foreground(colorWarning)
	default:
		return mutedStyle
	}
}

// Truncate shortens s to at most width terminal cells, adding an ellipsis
// if it was cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, ellipsis)
}

// PadOrTruncate returns s at exactly width terminal cells.
func PadOrTruncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(Truncate(s, width), width)
}

// WrapText wraps text at word boundaries to fit width.
func WrapText(text string, width int) []string {
	text = strings.TrimSpace(text)
	if width <= 0 || text == "" {
		return nil
	}
	return strings.Split(wordwrap.String(text, width), "\n")
}

// Indent prefixes every line with n spaces.
func Indent(lines []string, n int) []string {
	pad := strings.Repeat(" ", n)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = pad + l
	}
	return out
}

// HumanSize formats a byte count.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
