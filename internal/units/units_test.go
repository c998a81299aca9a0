package units

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInchesToPixels(t *testing.T) {
	tests := []struct {
		inches float64
		dpi    float64
		want   int
	}{
		{1, 96, 96},
		{1, 300, 300},
		{2.5, 96, 240},
		{0.333, 96, 32},
		{0.25, 203, 51},
		{0, 300, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InchesToPixels(tt.inches, tt.dpi), "%v in @ %v dpi", tt.inches, tt.dpi)
	}
}

func TestRoundTrip(t *testing.T) {
	assert.InDelta(t, 2.0, PixelsToInches(float64(InchesToPixels(2, 300)), 300), 1e-9)
	assert.InDelta(t, 50.8, MMFromInches(2), 1e-9)
	assert.InDelta(t, 2.0, InchesFromMM(50.8), 1e-9)
	assert.InDelta(t, 144.0, PointsFromInches(2), 1e-9)
	assert.InDelta(t, 0.125, CSSPxToInches(12), 1e-9)
	assert.InDelta(t, 37.5, ScaleCSSPx(12, 300), 1e-9)
	assert.Zero(t, PixelsToInches(10, 0))
}

func TestClampBox(t *testing.T) {
	canvas := Size{W: 2, H: 1}

	tests := []struct {
		name string
		in   Rect
		want Rect
	}{
		{"inside", Rect{X: 0.5, Y: 0.25, W: 1, H: 0.5}, Rect{X: 0.5, Y: 0.25, W: 1, H: 0.5}},
		{"past right edge", Rect{X: 1.8, Y: 0, W: 0.5, H: 0.5}, Rect{X: 1.5, Y: 0, W: 0.5, H: 0.5}},
		{"negative origin", Rect{X: -1, Y: -0.2, W: 0.5, H: 0.5}, Rect{X: 0, Y: 0, W: 0.5, H: 0.5}},
		{"oversize", Rect{X: 0.3, Y: 0.3, W: 5, H: 3}, Rect{X: 0, Y: 0, W: 2, H: 1}},
		{"negative size", Rect{X: 0.3, Y: 0.3, W: -1, H: -1}, Rect{X: 0.3, Y: 0.3, W: 0, H: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampBox(tt.in, canvas))
		})
	}
}

func TestToPixelsKeepsProportions(t *testing.T) {
	r := Rect{X: 0.1, Y: 0.2, W: 1.3, H: 0.4}

	screen := r.ToPixels(96)
	printed := r.ToPixels(300)
	scale := 300.0 / 96.0

	assert.InDelta(t, float64(screen.X)*scale, float64(printed.X), scale+1)
	assert.InDelta(t, float64(screen.W)*scale, float64(printed.W), 2*scale+1)
	assert.Equal(t, PixelRect{X: 30, Y: 60, W: 390, H: 120}, printed)
}

func TestSnapToGrid(t *testing.T) {
	assert.InDelta(t, 0.25, SnapToGrid(0.27, 0.125), 1e-9)
	assert.InDelta(t, 0.27, SnapToGrid(0.27, 0), 1e-9)
}

func TestCheckDPI(t *testing.T) {
	for _, dpi := range []float64{1, 96, 300, MaxDPI} {
		assert.NoError(t, CheckDPI(dpi, 0), "%g", dpi)
	}
	for _, dpi := range []float64{0, -1, MaxDPI + 1, 1e9, math.Inf(1), math.NaN()} {
		assert.Error(t, CheckDPI(dpi, 0), "%g", dpi)
	}
	assert.Error(t, CheckDPI(600, 300))
}
