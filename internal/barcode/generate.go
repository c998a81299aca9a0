package barcode

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/twooffive"
	"github.com/flanksource/commons/logger"
	"github.com/fogleman/gg"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"

	"github.com/thereceipt/label-engine/internal/fonts"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

const (
	// textShare is the part of the box height reserved for the human-readable value.
	textShare   = 0.2
	minFontSize = 8.0
	fontShare   = 0.15

	PlaceholderText = "Invalid Barcode"
)

// Generate draws value as a symbol filling a w×h pixel box. Bars use the full
// height (less the text band when displayValue is set) and an integer module
// width, centred horizontally. The returned Encoded reports what was drawn.
func Generate(value string, sym labelformat.Symbology, w, h int, displayValue bool) (*image.RGBA, Encoded, error) {
	enc, err := Normalize(value, sym)
	if err != nil {
		return nil, Encoded{}, err
	}
	if w <= 0 || h <= 0 {
		return nil, enc, newError(InvalidLength, sym, value, errors.New("empty box"))
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	barsH := h
	if displayValue {
		barsH = h - int(math.Round(float64(h)*textShare))
	}
	if barsH <= 0 {
		return nil, enc, newError(InvalidLength, sym, value, errors.New("box too short"))
	}

	if enc.Symbology == labelformat.QR {
		if err := drawQR(dst, enc.Value, w, barsH); err != nil {
			return nil, enc, newError(InvalidFormat, sym, value, err)
		}
	} else {
		bc, err := encode(enc)
		if err != nil {
			return nil, enc, newError(InvalidFormat, sym, value, err)
		}
		drawBars(dst, bc, w, barsH)
	}

	if displayValue {
		drawValue(dst, enc.Value, barsH, h)
	}
	return dst, enc, nil
}

// Render is Generate with errors turned into a placeholder. It never fails.
func Render(value string, sym labelformat.Symbology, w, h int, displayValue bool) *image.RGBA {
	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	img, _, err := Generate(value, sym, w, h, displayValue)
	if err != nil {
		logger.Debugf("barcode fallback to placeholder: %v", err)
		return Placeholder(w, h, PlaceholderText)
	}
	return img
}

func encode(enc Encoded) (barcode.Barcode, error) {
	switch enc.Symbology {
	case labelformat.EAN13:
		return ean.Encode(enc.Value)
	case labelformat.CODE39:
		return code39.Encode(enc.Value, false, false)
	case labelformat.ITF:
		return twooffive.Encode(enc.Value, true)
	default:
		return code128.Encode(enc.Value)
	}
}

// drawBars scales the 1-D symbol by the largest integer module width that fits.
// A box narrower than the symbol's module count is resampled down instead.
func drawBars(dst *image.RGBA, bc barcode.Barcode, w, barsH int) {
	modules := bc.Bounds().Dx()
	factor := w / modules

	if factor >= 1 {
		symbolW := modules * factor
		scaled, err := barcode.Scale(bc, symbolW, barsH)
		if err == nil {
			x := (w - symbolW) / 2
			draw.Draw(dst, image.Rect(x, 0, x+symbolW, barsH), scaled, image.Point{}, draw.Src)
			return
		}
	}

	full, err := barcode.Scale(bc, modules, barsH)
	if err != nil {
		return
	}
	draw.ApproxBiLinear.Scale(dst, image.Rect(0, 0, w, barsH), full, full.Bounds(), draw.Src, nil)
}

func drawQR(dst *image.RGBA, value string, w, h int) error {
	qr, err := qrcode.New(value, qrcode.Medium)
	if err != nil {
		return err
	}
	side := w
	if h < side {
		side = h
	}
	img := qr.Image(side)
	x := (w - side) / 2
	draw.Draw(dst, image.Rect(x, 0, x+side, side), img, image.Point{}, draw.Src)
	return nil
}

func drawValue(dst *image.RGBA, text string, top, h int) {
	size := math.Max(minFontSize, float64(h)*fontShare)

	dc := gg.NewContextForRGBA(dst)
	dc.SetFontFace(fonts.Default().Face(nil, "", fonts.WeightNormal, size))
	dc.SetColor(color.Black)
	dc.DrawRectangle(0, float64(top), float64(dst.Bounds().Dx()), float64(h-top))
	dc.Clip()
	dc.DrawStringAnchored(text, float64(dst.Bounds().Dx())/2, float64(top)+float64(h-top)/2, 0.5, 0.5)
	dc.ResetClip()
}

// Placeholder draws a grey box with a centred message, shown in place of a
// barcode that cannot be encoded.
func Placeholder(w, h int, message string) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return dst
	}

	dc := gg.NewContextForRGBA(dst)
	dc.SetHexColor("#f0f0f0")
	dc.Clear()

	stroke := math.Max(1, float64(h)/50)
	dc.SetHexColor("#999999")
	dc.SetLineWidth(stroke)
	dc.DrawRectangle(stroke/2, stroke/2, float64(w)-stroke, float64(h)-stroke)
	dc.Stroke()

	size := math.Max(minFontSize, math.Min(float64(h)*0.25, float64(w)/10))
	dc.SetFontFace(fonts.Default().Face(nil, "", fonts.WeightNormal, size))
	dc.SetHexColor("#cc0000")
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Clip()
	dc.DrawStringAnchored(message, float64(w)/2, float64(h)/2, 0.5, 0.5)
	return dst
}
