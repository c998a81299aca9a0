package renderer

import (
	"image"
	"math"

	"github.com/thereceipt/label-engine/internal/layout"
	"github.com/thereceipt/label-engine/internal/units"
)

func (p *pass) drawShape(n *layout.Node, w, h int) image.Image {
	s := n.Element.Shape
	img, ctx := newLayer(w, h)

	stroke := units.ScaleCSSPx(s.StrokeWidth, p.dpi)
	if s.StrokeWidth == 0 && (s.Kind == "line" || s.Fill == "") {
		stroke = math.Max(1, units.ScaleCSSPx(1, p.dpi))
	}
	fw, fh := float64(w), float64(h)

	// strokes are inset by half their width so they stay inside the box
	half := stroke / 2
	if s.Kind == "line" {
		ctx.SetColor(parseColor(s.Stroke, black))
		ctx.SetLineWidth(stroke)
		if len(s.Dash) > 0 {
			ctx.SetDash(scaleDash(s.Dash, p.dpi)...)
		}
		if fw >= fh {
			ctx.DrawLine(0, fh/2, fw, fh/2)
		} else {
			ctx.DrawLine(fw/2, 0, fw/2, fh)
		}
		ctx.Stroke()
		return img
	}

	trace := func() {
		switch s.Kind {
		case "ellipse":
			ctx.DrawEllipse(fw/2, fh/2, math.Max(0, fw/2-half), math.Max(0, fh/2-half))
		default:
			radius := units.ScaleCSSPx(s.Radius, p.dpi)
			if radius > 0 {
				ctx.DrawRoundedRectangle(half, half, fw-stroke, fh-stroke, radius)
			} else {
				ctx.DrawRectangle(half, half, fw-stroke, fh-stroke)
			}
		}
	}

	if s.Fill != "" {
		trace()
		ctx.SetColor(parseColor(s.Fill, black))
		ctx.Fill()
	}
	if stroke > 0 {
		trace()
		ctx.SetColor(parseColor(s.Stroke, black))
		ctx.SetLineWidth(stroke)
		if len(s.Dash) > 0 {
			ctx.SetDash(scaleDash(s.Dash, p.dpi)...)
		}
		ctx.Stroke()
	}
	return img
}

// scaleDash converts a CSS px dash pattern to pixels.
func scaleDash(dash []float64, dpi float64) []float64 {
	out := make([]float64, len(dash))
	for i, d := range dash {
		out[i] = units.ScaleCSSPx(d, dpi)
	}
	return out
}
