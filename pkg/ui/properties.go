package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/nodeview/pkg/model"
)

// PropertiesModel shows the properties of the selected node in a table.
type PropertiesModel struct {
	path    string
	props   model.Properties
	names   []string
	loading bool
	err     error

	table  table.Model
	theme  Theme
	width  int
	height int
}

// NewPropertiesModel creates an empty properties pane.
func NewPropertiesModel(theme Theme) PropertiesModel {
	t := table.New(
		table.WithColumns(propertyColumns(40)),
		table.WithFocused(false),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Border).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(theme.Base.GetForeground()).
		Background(theme.Selected.GetBackground()).
		Bold(false)
	t.SetStyles(s)

	return PropertiesModel{table: t, theme: theme}
}

// propertyColumns splits width between name, value and the read-only flag.
func propertyColumns(width int) []table.Column {
	if width < 20 {
		width = 20
	}
	flag := 3
	name := (width - flag) / 3
	value := width - flag - name - 4 // cell padding
	if value < 5 {
		value = 5
	}
	return []table.Column{
		{Title: "Name", Width: name},
		{Title: "Value", Width: value},
		{Title: "", Width: flag},
	}
}

// SetSize updates the pane dimensions.
func (p *PropertiesModel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.table.SetColumns(propertyColumns(width))
	if h := height - 2; h > 2 {
		p.table.SetHeight(h)
	}
}

// SetFocused routes cursor keys to the table.
func (p *PropertiesModel) SetFocused(focused bool) {
	if focused {
		p.table.Focus()
	} else {
		p.table.Blur()
	}
}

// Path returns the node whose properties are shown.
func (p *PropertiesModel) Path() string {
	return p.path
}

// SetLoading shows path as loading.
func (p *PropertiesModel) SetLoading(path string) {
	if path != p.path {
		p.table.SetCursor(0)
	}
	p.path = path
	p.loading = true
	p.err = nil
}

// Loading reports whether a properties request is outstanding.
func (p *PropertiesModel) Loading() bool {
	return p.loading
}

// SetProperties stores a response. Responses for another path are ignored.
func (p *PropertiesModel) SetProperties(path string, props model.Properties, err error) bool {
	if path != p.path {
		return false
	}
	p.loading = false
	p.err = err
	if err != nil {
		props = nil
	}
	p.props = props
	p.names = props.Names()

	rows := make([]table.Row, 0, len(p.names))
	for _, name := range p.names {
		flag := ""
		if props.IsMultiValued(name) {
			flag = "ro"
		}
		rows = append(rows, table.Row{name, props[name], flag})
	}
	p.table.SetRows(rows)
	if p.table.Cursor() >= len(rows) {
		p.table.SetCursor(len(rows) - 1)
	}
	if p.table.Cursor() < 0 {
		p.table.SetCursor(0)
	}
	return true
}

// Clear empties the pane.
func (p *PropertiesModel) Clear() {
	p.path = ""
	p.props = nil
	p.names = nil
	p.loading = false
	p.err = nil
	p.table.SetRows(nil)
	p.table.SetCursor(0)
}

// Properties returns the loaded properties.
func (p *PropertiesModel) Properties() model.Properties {
	return p.props
}

// SelectedName returns the property under the cursor, or "".
func (p *PropertiesModel) SelectedName() string {
	i := p.table.Cursor()
	if i < 0 || i >= len(p.names) {
		return ""
	}
	return p.names[i]
}

// SelectByName moves the cursor to name.
func (p *PropertiesModel) SelectByName(name string) {
	for i, n := range p.names {
		if n == name {
			p.table.SetCursor(i)
			return
		}
	}
}

// MoveUp moves the cursor up.
func (p *PropertiesModel) MoveUp() {
	p.table.MoveUp(1)
}

// MoveDown moves the cursor down.
func (p *PropertiesModel) MoveDown() {
	p.table.MoveDown(1)
}

// View renders the pane.
func (p *PropertiesModel) View() string {
	r := p.theme.Renderer
	title := r.NewStyle().Foreground(p.theme.Primary).Bold(true)
	muted := r.NewStyle().Foreground(p.theme.Muted)

	if p.path == "" {
		return title.Render("Properties") + "\n\n" + muted.Render("Select a node with enter.")
	}

	var sb strings.Builder
	sb.WriteString(title.Render("Properties"))
	sb.WriteString(" ")
	sb.WriteString(muted.Render(p.path))
	sb.WriteString("\n")

	switch {
	case p.loading && p.props == nil:
		sb.WriteString(muted.Render("loading…"))
	case p.err != nil:
		sb.WriteString(r.NewStyle().Foreground(p.theme.Danger).Render(fmt.Sprintf("could not load properties: %v", p.err)))
	case len(p.names) == 0:
		sb.WriteString(muted.Italic(true).Render("no properties"))
	default:
		sb.WriteString(p.table.View())
	}
	return sb.String()
}
