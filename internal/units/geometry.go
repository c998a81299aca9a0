package units

import "math"

// Size is a width/height pair in inches.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Rect is an axis-aligned box in inches, origin at the top-left.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// PixelRect is a Rect resolved for one DPI.
type PixelRect struct {
	X, Y, W, H int
}

func (r Rect) Size() Size { return Size{W: r.W, H: r.H} }

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Offset translates r by (dx, dy).
func (r Rect) Offset(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Inset shrinks r by d on every side, never below zero size.
func (r Rect) Inset(d float64) Rect {
	r.X += d
	r.Y += d
	r.W = math.Max(0, r.W-2*d)
	r.H = math.Max(0, r.H-2*d)
	return r
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// ToPixels resolves r at dpi. Edges are rounded rather than sizes, so adjacent
// boxes stay adjacent after rounding.
func (r Rect) ToPixels(dpi float64) PixelRect {
	x0 := InchesToPixels(r.X, dpi)
	y0 := InchesToPixels(r.Y, dpi)
	x1 := InchesToPixels(r.X+r.W, dpi)
	y1 := InchesToPixels(r.Y+r.H, dpi)
	return PixelRect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// ClampBox keeps box inside a container of the given size: sizes are limited to
// the container and the origin to [0, container-size]. Negative sizes become 0.
func ClampBox(box Rect, container Size) Rect {
	box.W = clamp(box.W, 0, math.Max(0, container.W))
	box.H = clamp(box.H, 0, math.Max(0, container.H))
	box.X = clamp(box.X, 0, container.W-box.W)
	box.Y = clamp(box.Y, 0, container.H-box.H)
	return box
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Min(math.Max(v, lo), hi)
}
