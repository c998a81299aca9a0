package renderer

import (
	"image"

	"github.com/thereceipt/label-engine/internal/layout"
	"github.com/thereceipt/label-engine/internal/units"
)

const defaultFontSize = 12.0 // CSS px

// drawText draws a single line, vertically centred and clipped to the box.
// There is no wrapping.
func (p *pass) drawText(n *layout.Node, w, h int) image.Image {
	t := n.Element.Text
	img, ctx := newLayer(w, h)
	if n.Value == "" {
		return img
	}

	size := t.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	face := p.r.fonts.Face(p.families, t.Font, t.FontWeight, units.ScaleCSSPx(size, p.dpi))
	defer face.Close()
	ctx.SetFontFace(face)
	ctx.SetColor(parseColor(t.Color, black))

	var x, ax float64
	switch t.Align {
	case "center":
		x, ax = float64(w)/2, 0.5
	case "right":
		x, ax = float64(w), 1
	}
	ctx.DrawStringAnchored(n.Value, x, float64(h)/2, ax, 0.5)
	return img
}
