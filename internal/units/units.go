// Package units converts between the label's physical units (inches, millimeters,
// points) and raster units (CSS pixels at 96 DPI, device pixels at an arbitrary DPI).
//
// Boxes are stored in inches. Pixel values are always derived for a given DPI and
// rounded to the nearest pixel, so a box resolves to proportional rectangles at
// screen and print resolution.
package units

import (
	"fmt"
	"math"
)

const (
	ScreenDPI = 96.0
	PrintDPI  = 300.0
	MaxDPI    = 1200.0

	MMPerInch     = 25.4
	PointsPerInch = 72.0
	CSSPxPerInch  = 96.0
)

// InchesToPixels converts inches to device pixels, rounded to the nearest pixel.
func InchesToPixels(value, dpi float64) int {
	return int(math.Round(value * dpi))
}

// InchesToPixelsF converts without rounding.
func InchesToPixelsF(value, dpi float64) float64 {
	return value * dpi
}

func PixelsToInches(px, dpi float64) float64 {
	if dpi <= 0 {
		return 0
	}
	return px / dpi
}

func MMFromInches(value float64) float64 {
	return value * MMPerInch
}

func InchesFromMM(mm float64) float64 {
	return mm / MMPerInch
}

func PointsFromInches(value float64) float64 {
	return value * PointsPerInch
}

// CSSPxToInches converts a CSS pixel length (96 per inch) to inches.
func CSSPxToInches(px float64) float64 {
	return px / CSSPxPerInch
}

// ScaleCSSPx converts a CSS pixel length to device pixels at dpi.
func ScaleCSSPx(px, dpi float64) float64 {
	return px * dpi / CSSPxPerInch
}

// EffectiveDPI returns dpi, or ScreenDPI when dpi is unset.
func EffectiveDPI(dpi float64) float64 {
	if dpi <= 0 {
		return ScreenDPI
	}
	return dpi
}

// CheckDPI rejects a resolution that is not a finite positive number no larger
// than limit. A non-positive limit means MaxDPI.
func CheckDPI(dpi, limit float64) error {
	if limit <= 0 {
		limit = MaxDPI
	}
	if math.IsNaN(dpi) || math.IsInf(dpi, 0) || dpi <= 0 || dpi > limit {
		return fmt.Errorf("dpi must be between 0 and %g, got %g", limit, dpi)
	}
	return nil
}

// SnapToGrid rounds v to the nearest multiple of step. A non-positive step
// leaves v unchanged.
func SnapToGrid(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
