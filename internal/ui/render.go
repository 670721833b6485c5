// Package ui renders collections for the terminal: static tables for the
// CLI commands and a live dashboard for "tasknotes watch".
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/tasknotes/internal/model"
	"github.com/nhle/tasknotes/internal/theme"
	"github.com/nhle/tasknotes/internal/workspace"
)

var (
	headerCell = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Padding(0, 1)
	bodyCell   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})
}

func empty(what string) string {
	return theme.HelpStyle.Render("No " + what + " yet.")
}

func categoryLabel(id *string, cats map[string]model.Category) string {
	if id == nil {
		return ""
	}
	if c, ok := cats[*id]; ok {
		return theme.CategoryStyle(c.Color).Render(c.Name)
	}
	// Deleted categories leave dangling ids behind.
	return theme.HelpStyle.Render("unknown")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// TaskTable renders tasks one per row.
func TaskTable(tasks []model.Task, cats map[string]model.Category) string {
	if len(tasks) == 0 {
		return empty("tasks")
	}
	t := newTable("ID", "Name", "Status", "Priority", "Category", "Personal")
	for _, task := range tasks {
		t.Row(
			task.ID,
			task.Name,
			theme.StatusStyle(task.Status).Render(string(task.Status)),
			theme.PriorityStyle(task.Priority).Render(string(task.Priority)),
			categoryLabel(task.CategoryID, cats),
			yesNo(task.IsPersonal),
		)
	}
	return t.String()
}

// Board renders the Kanban columns side by side within width.
func Board(cols map[model.Status][]model.Task, width int) string {
	colWidth := 30
	if width > 0 {
		colWidth = width/len(model.Statuses) - 4
	}
	if colWidth < 12 {
		colWidth = 12
	}

	rendered := make([]string, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		items := cols[s]
		lines := []string{theme.StatusStyle(s).Render(fmt.Sprintf("%s (%d)", s, len(items)))}
		for _, task := range items {
			lines = append(lines, theme.PriorityStyle(task.Priority).Render("●")+" "+task.Name)
		}
		rendered = append(rendered, theme.ColumnStyle.Width(colWidth).Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// CategoryTable renders categories with a swatch in their own color.
func CategoryTable(cats []model.Category) string {
	if len(cats) == 0 {
		return empty("categories")
	}
	t := newTable("ID", "Name", "Color")
	for _, c := range cats {
		t.Row(c.ID, theme.CategoryStyle(c.Color).Render(c.Name), c.Color)
	}
	return t.String()
}

// NoteTable renders notes in mirror order, pinned first.
func NoteTable(notes []model.Note, cats map[string]model.Category) string {
	if len(notes) == 0 {
		return empty("notes")
	}
	t := newTable("", "ID", "Title", "Category", "Updated")
	for _, n := range notes {
		pin := ""
		if n.IsPinned {
			pin = theme.PinnedStyle.Render("★")
		}
		t.Row(pin, n.ID, n.Title, categoryLabel(n.CategoryID, cats), n.UpdatedAt.Local().Format(time.DateTime))
	}
	return t.String()
}

// StatusTable renders one row of sync diagnostics per collection.
func StatusTable(st workspace.Status) string {
	t := newTable("Collection", "Phase", "Rows", "Mode", "Connection", "Updates", "Retries", "Errors", "Last error")
	row := func(name string, cs workspace.CollectionStatus) {
		t.Row(
			name,
			cs.Phase,
			strconv.Itoa(cs.Count),
			cs.Mode,
			theme.ConnectionStyle(cs.Status).Render(cs.Status),
			strconv.Itoa(cs.Sync.UpdateCount),
			strconv.Itoa(cs.Sync.Retries),
			strconv.Itoa(cs.Sync.Errors),
			theme.ErrorStyle.Render(cs.Error),
		)
	}
	row("tasks", st.Tasks)
	row("categories", st.Categories)
	row("notes", st.Notes)
	return t.String()
}
