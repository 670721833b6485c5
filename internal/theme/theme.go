// Package theme holds the terminal palette and the styles shared by the
// CLI tables and the watch dashboard.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tasknotes/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the dashboard title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom key hint bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// ColumnStyle frames one Kanban column.
var ColumnStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for hints and empty-state text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle highlights the last error of a collection.
var ErrorStyle = lipgloss.NewStyle().Foreground(ColorRed)

// PinnedStyle marks pinned notes.
var PinnedStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorYellow)

// StatusStyle returns a color-coded style for a Kanban column.
func StatusStyle(s model.Status) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch s {
	case model.StatusTodo:
		return base.Foreground(ColorBlue)
	case model.StatusInProgress:
		return base.Foreground(ColorYellow)
	case model.StatusDone:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// PriorityStyle returns a color-coded style for a task priority.
func PriorityStyle(p model.Priority) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch p {
	case model.PriorityHigh:
		return base.Foreground(ColorRed)
	case model.PriorityMedium:
		return base.Foreground(ColorYellow)
	case model.PriorityLow:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// ConnectionStyle colors a reconciler connection status by its name.
func ConnectionStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch status {
	case "connected":
		return base.Foreground(ColorGreen)
	case "disconnected":
		return base.Foreground(ColorYellow)
	case "disabled":
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// CategoryStyle renders text in a category's own color. Colors that are not
// hex triplets fall back to gray, since rows from the feed are not validated.
func CategoryStyle(color string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	if !model.ValidColor(color) {
		return base.Foreground(ColorGray)
	}
	return base.Foreground(lipgloss.Color(color))
}
