package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tasknotes/internal/collection"
	"github.com/nhle/tasknotes/internal/keys"
	"github.com/nhle/tasknotes/internal/theme"
	"github.com/nhle/tasknotes/internal/workspace"
)

// View is the active dashboard page.
type View int

const (
	ViewBoard View = iota
	ViewNotes
	ViewCategories
	ViewStatus
	viewCount
)

var viewNames = [...]string{"board", "notes", "categories", "status"}

func (v View) String() string { return viewNames[v] }

// changedMsg signals that some collection changed.
type changedMsg struct{}

// opDoneMsg carries the result of a sync action started from the keyboard.
type opDoneMsg struct{ err error }

// Dashboard is the Bubble Tea model behind "tasknotes watch". It re-renders
// on every collection change.
type Dashboard struct {
	ctx    context.Context
	ws     *workspace.Workspace
	keys   *keys.KeyMap
	help   help.Model
	layout Layout
	view   View
	err    error

	changes     chan struct{}
	done        chan struct{}
	unsubscribe func()
}

// NewDashboard subscribes to ws. Call Close when the program exits.
func NewDashboard(ctx context.Context, ws *workspace.Workspace) *Dashboard {
	d := &Dashboard{
		ctx:     ctx,
		ws:      ws,
		keys:    keys.DefaultKeyMap(),
		help:    help.New(),
		layout:  NewLayout(100, 30),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	d.unsubscribe = ws.Subscribe(func() {
		select {
		case d.changes <- struct{}{}:
		default:
		}
	})
	return d
}

// Close detaches the dashboard from the workspace.
func (d *Dashboard) Close() {
	select {
	case <-d.done:
		return
	default:
	}
	d.unsubscribe()
	close(d.done)
}

// Init starts waiting for changes.
func (d *Dashboard) Init() tea.Cmd { return d.waitForChange() }

func (d *Dashboard) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-d.changes:
			return changedMsg{}
		case <-d.done:
			return nil
		}
	}
}

func (d *Dashboard) run(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg { return opDoneMsg{err: fn(d.ctx)} }
}

// Update handles key presses, resizes and change signals.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.layout = NewLayout(msg.Width, msg.Height)
		d.help.Width = msg.Width
	case changedMsg:
		return d, d.waitForChange()
	case opDoneMsg:
		d.err = msg.err
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Quit):
			d.Close()
			return d, tea.Quit
		case key.Matches(msg, d.keys.Next):
			d.view = (d.view + 1) % viewCount
		case key.Matches(msg, d.keys.Prev):
			d.view = (d.view + viewCount - 1) % viewCount
		case key.Matches(msg, d.keys.Refresh):
			return d, d.run(d.ws.Refresh)
		case key.Matches(msg, d.keys.Retry):
			return d, d.run(d.ws.Retry)
		case key.Matches(msg, d.keys.Disable):
			d.ws.DisableLive()
		case key.Matches(msg, d.keys.Help):
			d.help.ShowAll = !d.help.ShowAll
		}
	}
	return d, nil
}

// View renders the active page inside the frame.
func (d *Dashboard) View() string {
	st := d.ws.Status()
	owner := st.Owner
	if owner == "" {
		owner = "signed out"
	}
	summary := fmt.Sprintf("%s · %s/%s", owner, st.Tasks.Mode, st.Tasks.Status)
	header := d.layout.RenderHeader("tasknotes · "+d.view.String(), summary)

	hints := d.help.View(d.keys)
	if d.err != nil {
		hints = theme.ErrorStyle.Render(d.err.Error()) + "  " + hints
	}
	return d.layout.RenderWithFrame(header, d.content(), d.layout.RenderStatusBar(hints))
}

func (d *Dashboard) content() string {
	cats := d.ws.Categories.Lookup()
	switch d.view {
	case ViewNotes:
		return NoteTable(d.ws.Notes.View(collection.Filter{}), cats)
	case ViewCategories:
		return CategoryTable(d.ws.Categories.List())
	case ViewStatus:
		return StatusTable(d.ws.Status())
	default:
		if st := d.ws.Tasks.State(); st.Phase != collection.PhaseReady {
			return lipgloss.NewStyle().Padding(1, 2).Render(theme.HelpStyle.Render("Loading tasks…"))
		}
		return Board(d.ws.Tasks.ByStatus(), d.layout.Width)
	}
}
