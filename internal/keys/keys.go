// Package keys declares the watch dashboard keybindings.
package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard keybindings.
type KeyMap struct {
	// Views
	Next key.Binding
	Prev key.Binding

	// Sync control
	Refresh key.Binding
	Retry   key.Binding
	Disable key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "l", "right"),
			key.WithHelp("tab", "next view"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "h", "left"),
			key.WithHelp("shift+tab", "previous view"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Retry: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "retry live"),
		),
		Disable: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "poll only"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns all keybindings grouped for the expanded help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev},
		{k.Refresh, k.Retry, k.Disable},
		{k.Help, k.Quit},
	}
}
