package ui

import "github.com/charmbracelet/lipgloss"

// Theme holds the colors and base styles of the browser. Styles are created
// from Renderer so tests can render without a terminal.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Danger    lipgloss.AdaptiveColor
	Admin     lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Selected lipgloss.Style
	Panel    lipgloss.Style
	Focused  lipgloss.Style
	Header   lipgloss.Style
	Footer   lipgloss.Style
}

// DefaultTheme returns the stock theme for r.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer:  r,
		Primary:   lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"},
		Secondary: lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#E5C07B"},
		Highlight: lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#56B6C2"},
		Muted:     lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#4A4A4A", Dark: "#BCBCBC"},
		Border:    lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#3A3A3A"},
		Danger:    lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E06C75"},
		Admin:     lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#98C379"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#DDDDDD"})
	t.Selected = r.NewStyle().
		Background(lipgloss.AdaptiveColor{Light: "#E4E2FF", Dark: "#2F2D5A"}).
		Bold(true)
	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border)
	t.Focused = t.Panel.BorderForeground(t.Primary)
	t.Header = r.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}).
		Background(t.Primary).
		Bold(true).
		Padding(0, 1)
	t.Footer = r.NewStyle().Foreground(t.Muted).Padding(0, 1)
	return t
}
