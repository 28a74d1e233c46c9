package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
)

// GenerateMarkdown creates a markdown report of a walked subtree
func GenerateMarkdown(root *Entry, title string) (string, error) {
	if root == nil {
		return "", fmt.Errorf("nothing to export")
	}
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format(time.RFC1123)))

	stats := Summarize(root)
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Root**: `%s`\n", root.Path))
	sb.WriteString(fmt.Sprintf("- **Nodes**: %d\n", stats.Nodes))
	sb.WriteString(fmt.Sprintf("- **Properties**: %d\n", stats.Properties))
	sb.WriteString(fmt.Sprintf("- **Depth**: %d\n\n", stats.MaxDepth))

	entries := Flatten(root)

	// Outline doubles as the table of contents
	sb.WriteString("## Outline\n\n")
	for _, e := range entries {
		indent := strings.Repeat("  ", e.Depth)
		label := e.Name
		if e.Depth == 0 {
			label = e.Path
		}
		sb.WriteString(fmt.Sprintf("%s- [%s](#%s)", indent, label, anchor(e.Path)))
		if e.Truncated {
			sb.WriteString(" …")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n---\n\n")

	sb.WriteString("## Tree\n\n")
	sb.WriteString("```mermaid\ngraph TD\n")
	ids := make(map[*Entry]string, len(entries))
	for i, e := range entries {
		ids[e] = fmt.Sprintf("n%d", i)
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[e], mermaidLabel(e.Name)))
	}
	for _, e := range entries {
		for _, c := range e.Children {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", ids[e], ids[c]))
		}
	}
	sb.WriteString("```\n\n")

	sb.WriteString("---\n\n")

	// Nodes
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("## %s\n\n", e.Path))

		switch {
		case e.Props == nil:
		case len(e.Props) == 0:
			sb.WriteString("_no properties_\n\n")
		default:
			sb.WriteString("| Property | Value |\n")
			sb.WriteString("|---|---|\n")
			for _, name := range e.Props.Names() {
				value := e.Props[name]
				if e.Props.IsMultiValued(name) {
					value = "_multiple values_"
				}
				sb.WriteString(fmt.Sprintf("| %s | %s |\n", cell(name), cell(value)))
			}
			sb.WriteString("\n")
		}

		if len(e.Children) > 0 {
			sb.WriteString("### Children\n\n")
			for _, c := range e.Children {
				sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", c.Name, anchor(c.Path)))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String(), nil
}

// SaveMarkdownToFile writes the generated markdown to a file
func SaveMarkdownToFile(root *Entry, filename string) error {
	content, err := GenerateMarkdown(root, "Node Export")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}

// PreviewMarkdown renders markdown for the terminal.
func PreviewMarkdown(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

// anchor approximates the heading anchor most renderers generate for a path.
func anchor(path string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(path) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteRune('-')
		}
	}
	return sb.String()
}

func mermaidLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	if len(s) > 30 {
		s = s[:27] + "..."
	}
	return s
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
