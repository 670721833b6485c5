package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tasknotes/internal/theme"
)

// Layout tracks the terminal size and frames dashboard content.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight returns the rows left between the header and status bars.
func (l Layout) ContentHeight() int {
	if h := l.Height - 2; h > 0 {
		return h
	}
	return 0
}

// RenderHeader renders the title bar with right-aligned sync summary.
func (l Layout) RenderHeader(title, summary string) string {
	return bar(theme.HeaderStyle, title, summary, l.Width)
}

// RenderStatusBar renders the bottom bar with key hints.
func (l Layout) RenderStatusBar(hints string) string {
	return bar(theme.StatusBarStyle, hints, "", l.Width)
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().Height(l.ContentHeight()).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// bar fills width with style, left text flush left and right text flush right.
func bar(style lipgloss.Style, left, right string, width int) string {
	inner := style.GetHorizontalPadding()
	gap := width - inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return style.Render(left + strings.Repeat(" ", gap) + right)
}
