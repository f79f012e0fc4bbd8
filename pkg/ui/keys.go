package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global shortcuts and the keys used inside overlays.
type KeyMap struct {
	ToggleQA         key.Binding
	TogglePrompt     key.Binding
	ToggleListening  key.Binding
	Vision           key.Binding
	ToggleProtection key.Binding
	Microphones      key.Binding
	History          key.Binding
	Quit             key.Binding

	Submit  key.Binding
	Save    key.Binding
	Refresh key.Binding
	Close   key.Binding
}

// DefaultKeyMap provides the default key bindings. Terminals report
// ctrl+space as ctrl+@.
var DefaultKeyMap = KeyMap{
	ToggleQA: key.NewBinding(
		key.WithKeys("ctrl+@", "ctrl+space"),
		key.WithHelp("ctrl+space", "q&a"),
	),
	TogglePrompt: key.NewBinding(
		key.WithKeys("alt+ctrl+p", "ctrl+p"),
		key.WithHelp("ctrl+p", "prompt"),
	),
	ToggleListening: key.NewBinding(
		key.WithKeys("alt+ctrl+l", "ctrl+l"),
		key.WithHelp("ctrl+l", "listen"),
	),
	Vision: key.NewBinding(
		key.WithKeys("ctrl+v"),
		key.WithHelp("ctrl+v", "screen"),
	),
	ToggleProtection: key.NewBinding(
		key.WithKeys("ctrl+e"),
		key.WithHelp("ctrl+e", "protect"),
	),
	Microphones: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("ctrl+o", "mic"),
	),
	History: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "history"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close"),
	),
}
