package export

import "unicode/utf8"

// Diagram geometry shared by the SVG and PNG writers.
const (
	rowHeight   = 22
	indentWidth = 24
	margin      = 16
	dotRadius   = 4
	charWidth   = 7 // basicfont.Face7x13 advance
)

// placed is an entry with its position in the diagram.
type placed struct {
	entry  *Entry
	label  string
	x, y   int // centre of the node dot
	parent int // index into the layout, -1 for the root
}

// layoutTree lays the subtree out as an indented outline, one row per node.
// It returns the rows and the canvas size.
func layoutTree(root *Entry) ([]placed, int, int) {
	entries := Flatten(root)
	index := make(map[*Entry]int, len(entries))
	parents := make(map[*Entry]*Entry, len(entries))
	for _, e := range entries {
		for _, c := range e.Children {
			parents[c] = e
		}
	}

	rows := make([]placed, 0, len(entries))
	width := 0
	for i, e := range entries {
		index[e] = i
		label := e.Name
		if e.Depth == 0 {
			label = e.Path
		}
		if e.Truncated {
			label += " …"
		}
		p := placed{
			entry:  e,
			label:  label,
			x:      margin + e.Depth*indentWidth + dotRadius,
			y:      margin + i*rowHeight + rowHeight/2,
			parent: -1,
		}
		if parent, ok := parents[e]; ok {
			p.parent = index[parent]
		}
		if w := p.x + dotRadius + 6 + utf8.RuneCountInString(label)*charWidth + margin; w > width {
			width = w
		}
		rows = append(rows, p)
	}
	height := 2*margin + len(rows)*rowHeight
	return rows, width, height
}
