package export

import (
	"fmt"
	"io"
	"os"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"
)

// WritePNG rasterises the same diagram as WriteSVG.
func WritePNG(w io.Writer, root *Entry) error {
	if root == nil {
		return fmt.Errorf("nothing to export")
	}
	rows, width, height := layoutTree(root)

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetHexColor("#9e9e9e")
	dc.SetLineWidth(1)
	for _, r := range rows {
		if r.parent < 0 {
			continue
		}
		p := rows[r.parent]
		dc.DrawLine(float64(p.x), float64(p.y), float64(p.x), float64(r.y))
		dc.DrawLine(float64(p.x), float64(r.y), float64(r.x), float64(r.y))
		dc.Stroke()
	}

	for _, r := range rows {
		if r.entry.HasChildren {
			dc.SetHexColor("#7d56f4")
		} else {
			dc.SetHexColor("#9e9e9e")
		}
		dc.DrawCircle(float64(r.x), float64(r.y), dotRadius)
		dc.Fill()

		dc.SetHexColor("#1a1a1a")
		dc.DrawString(r.label, float64(r.x+dotRadius+6), float64(r.y+4))
	}

	return dc.EncodePNG(w)
}

// SavePNGToFile writes the diagram to filename.
func SavePNGToFile(root *Entry, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WritePNG(f, root); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
