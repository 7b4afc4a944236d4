package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings active while a task runs.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "cancel"),
		),
	}
}

// HelpText returns a formatted help string for a running task.
func (k KeyMap) HelpText() string {
	return k.Quit.Help().Key + " " + k.Quit.Help().Desc
}
