package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/nodeview/pkg/model"
)

type promptKind int

const (
	promptLogin promptKind = iota
	promptAddNode
	promptDeleteNode
	promptNewProperty
	promptEditProperty
	promptDeleteProperty
)

// prompt is a modal huh form. Values are bound to its fields, so it lives
// behind a pointer while Model is copied around by bubbletea.
type prompt struct {
	kind promptKind
	form *huh.Form

	target   string // node the prompt acts on
	name     string // new node name, or the property name
	value    string
	original string // property value before editing

	username string
	password string

	confirmed bool
}

// formKeyMap adds esc to the quit keys so every prompt can be cancelled.
func formKeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "cancel"),
	)
	return km
}

func newForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).
		WithKeyMap(formKeyMap()).
		WithTheme(huh.ThemeCharm()).
		WithWidth(50).
		WithShowHelp(true)
}

func requireValue(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func newLoginPrompt(username string) *prompt {
	p := &prompt{kind: promptLogin, username: username}
	p.form = newForm(huh.NewGroup(
		huh.NewNote().Title("Log in").Description("Credentials for the repository server."),
		huh.NewInput().Title("Username").Value(&p.username).Validate(requireValue),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&p.password),
	))
	return p
}

func newAddNodePrompt(parent string) *prompt {
	p := &prompt{kind: promptAddNode, target: parent}
	p.form = newForm(huh.NewGroup(
		huh.NewInput().
			Title("New child node").
			Description("under "+parent).
			Value(&p.name).
			Validate(model.ValidateName),
	))
	return p
}

func newDeleteNodePrompt(path string) *prompt {
	p := &prompt{kind: promptDeleteNode, target: path}
	p.form = newForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Delete "+path+"?").
			Description("The node and everything below it is removed.").
			Affirmative("Delete").
			Negative("Cancel").
			Value(&p.confirmed),
	))
	return p
}

func newPropertyPrompt(path string) *prompt {
	p := &prompt{kind: promptNewProperty, target: path}
	p.form = newForm(huh.NewGroup(
		huh.NewInput().Title("Property name").Value(&p.name).Validate(model.ValidateName),
		huh.NewInput().Title("Value").Value(&p.value),
	))
	return p
}

func newEditPropertyPrompt(path, name, value string) *prompt {
	p := &prompt{kind: promptEditProperty, target: path, name: name, value: value, original: value}
	p.form = newForm(huh.NewGroup(
		huh.NewInput().Title(name).Description("on "+path).Value(&p.value),
	))
	return p
}

func newDeletePropertyPrompt(path, name string) *prompt {
	p := &prompt{kind: promptDeleteProperty, target: path, name: name}
	p.form = newForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Delete property %q?", name)).
			Description("on "+path).
			Affirmative("Delete").
			Negative("Cancel").
			Value(&p.confirmed),
	))
	return p
}

// credentials returns what the login prompt collected.
func (p *prompt) credentials() model.Credentials {
	return model.Credentials{Username: p.username, Password: p.password}
}

// changed reports whether an edit prompt holds a new value.
func (p *prompt) changed() bool {
	return p.value != p.original
}
