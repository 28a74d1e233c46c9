package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// AlertModel is a blocking message box. Any key dismisses it.
type AlertModel struct {
	title   string
	message string
	danger  bool
	width   int
	height  int
	theme   Theme
}

// NewAlertModel creates an alert.
func NewAlertModel(title, message string, danger bool, theme Theme) AlertModel {
	return AlertModel{title: title, message: message, danger: danger, theme: theme}
}

// SetSize updates the area the alert is centered in.
func (m *AlertModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Message returns the alert text.
func (m AlertModel) Message() string {
	return m.message
}

// View renders the alert centered in its area.
func (m AlertModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}
	t := m.theme

	boxWidth := 50
	if m.width < 60 {
		boxWidth = m.width - 10
	}
	if boxWidth < 25 {
		boxWidth = 25
	}

	accent := t.Primary
	if m.danger {
		accent = t.Danger
	}

	var lines []string
	lines = append(lines, t.Renderer.NewStyle().Foreground(accent).Bold(true).Render(m.title))
	lines = append(lines, "")
	lines = append(lines, t.Renderer.NewStyle().Width(boxWidth-6).Render(m.message))
	lines = append(lines, "")
	lines = append(lines, t.Renderer.NewStyle().Foreground(t.Muted).Italic(true).Render("press any key"))

	box := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(1, 2).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
