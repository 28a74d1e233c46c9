package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the browser.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageDown key.Binding
	PageUp   key.Binding
	Toggle   key.Binding
	Expand   key.Binding
	Collapse key.Binding
	Select   key.Binding
	Refresh  key.Binding
	Add      key.Binding
	Delete   key.Binding
	Yank     key.Binding

	NewProp    key.Binding
	EditProp   key.Binding
	DeleteProp key.Binding

	Focus key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// DefaultKeyMap returns the stock bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		PageDown: key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("ctrl+d", "page down")),
		PageUp:   key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("ctrl+u", "page up")),
		Toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Expand:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l", "expand")),
		Collapse: key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h", "collapse")),
		Select:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Yank:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy path")),

		NewProp:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		EditProp:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		DeleteProp: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),

		Focus: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "pane")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
