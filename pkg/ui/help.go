package ui

import (
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const helpMarkdown = `# nodeview

## Tree

| Key | Action |
|---|---|
| j / k | move down / up |
| g / G | first / last row |
| ctrl+d / ctrl+u | half page down / up |
| space | expand or collapse |
| l / → | expand, or step into children |
| h / ← | collapse, or jump to parent |
| enter | select node and show its properties |
| r | refresh the node (re-list children) |
| a | add a child node (admin) |
| d | delete the node (admin, not the root) |
| y | copy the node path |

## Properties

| Key | Action |
|---|---|
| j / k | move down / up |
| n | new property |
| e | edit the property |
| x | delete the property |

Properties shown as ` + "`[Multiple Values]`" + ` are multi-valued and read-only.

## Everywhere

| Key | Action |
|---|---|
| tab | switch pane |
| ? | toggle this help |
| q / ctrl+c | quit |
`

// HelpModel is the scrollable help overlay.
type HelpModel struct {
	viewport viewport.Model
	theme    Theme
	rendered string
}

// NewHelpModel renders the help text for the given size.
func NewHelpModel(theme Theme, width, height int) HelpModel {
	h := HelpModel{theme: theme}
	h.SetSize(width, height)
	return h
}

// SetSize re-renders the help for a new size.
func (h *HelpModel) SetSize(width, height int) {
	boxWidth := width - 4
	if boxWidth > 80 {
		boxWidth = 80
	}
	if boxWidth < 30 {
		boxWidth = 30
	}
	boxHeight := height - 4
	if boxHeight < 5 {
		boxHeight = 5
	}

	h.rendered = helpMarkdown
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(boxWidth-4),
	)
	if err == nil {
		if out, err := r.Render(helpMarkdown); err == nil {
			h.rendered = out
		}
	}

	h.viewport = viewport.New(boxWidth, boxHeight)
	h.viewport.SetContent(h.rendered)
}

// ScrollDown scrolls the help by one line.
func (h *HelpModel) ScrollDown() {
	h.viewport.LineDown(1)
}

// ScrollUp scrolls the help by one line.
func (h *HelpModel) ScrollUp() {
	h.viewport.LineUp(1)
}

// View renders the help in a bordered box.
func (h HelpModel) View() string {
	return h.theme.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(h.theme.Secondary).
		Render(h.viewport.View())
}
