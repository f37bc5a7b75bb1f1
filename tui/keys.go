package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the control panel key bindings.
type KeyMap struct {
	Connect    key.Binding
	Pair       key.Binding
	Disconnect key.Binding
	Reset      key.Binding
	Refresh    key.Binding
	Confirm    key.Binding
	Cancel     key.Binding
	Quit       key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Connect: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "connect"),
	),
	Pair: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "enter PIN"),
	),
	Disconnect: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "disconnect"),
	),
	Reset: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "delete config"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "yes"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "n", "N"),
		key.WithHelp("esc", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k KeyMap) mainHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Pair, k.Disconnect, k.Reset, k.Refresh, k.Quit}
}
