package export

import (
	"fmt"
	"io"
	"os"

	svg "github.com/ajstarks/svgo"
)

// WriteSVG draws the subtree as an indented diagram with elbow connectors.
func WriteSVG(w io.Writer, root *Entry) error {
	if root == nil {
		return fmt.Errorf("nothing to export")
	}
	rows, width, height := layoutTree(root)

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Title(root.Path)
	canvas.Rect(0, 0, width, height, "fill:#ffffff")

	canvas.Gid("edges")
	for _, r := range rows {
		if r.parent < 0 {
			continue
		}
		p := rows[r.parent]
		canvas.Line(p.x, p.y, p.x, r.y, "stroke:#9e9e9e;stroke-width:1")
		canvas.Line(p.x, r.y, r.x, r.y, "stroke:#9e9e9e;stroke-width:1")
	}
	canvas.Gend()

	canvas.Gid("nodes")
	for _, r := range rows {
		fill := "#7d56f4"
		if !r.entry.HasChildren {
			fill = "#9e9e9e"
		}
		canvas.Circle(r.x, r.y, dotRadius, "fill:"+fill)
		canvas.Text(r.x+dotRadius+6, r.y+4, r.label, "font-family:monospace;font-size:12px;fill:#1a1a1a")
	}
	canvas.Gend()

	canvas.End()
	return nil
}

// SaveSVGToFile writes the diagram to filename.
func SaveSVGToFile(root *Entry, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteSVG(f, root); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
