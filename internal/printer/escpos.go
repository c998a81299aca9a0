package printer

import (
	"bytes"
	"image"
)

// ESC/POS command prefixes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
)

// defaultThreshold is the luminance below which a pixel prints black.
const defaultThreshold = 128

// Encoder builds an ESC/POS command stream.
type Encoder struct {
	buffer    bytes.Buffer
	Threshold uint8
}

// NewEncoder creates an encoder with the default threshold.
func NewEncoder() *Encoder {
	return &Encoder{Threshold: defaultThreshold}
}

// Initialize resets the printer.
func (e *Encoder) Initialize() {
	e.buffer.Write([]byte{ESC, '@'})
}

// Raster prints img as a single GS v 0 raster bit image. Rows are padded to
// whole bytes.
func (e *Encoder) Raster(img image.Image) {
	b := img.Bounds()
	bytesPerLine := (b.Dx() + 7) / 8
	height := b.Dy()

	e.buffer.Write([]byte{GS, 'v', '0', 0,
		byte(bytesPerLine), byte(bytesPerLine >> 8),
		byte(height), byte(height >> 8),
	})
	e.buffer.Write(Bitmap(img, e.Threshold))
}

// Feed advances the paper by n lines.
func (e *Encoder) Feed(n int) {
	if n <= 0 {
		return
	}
	e.buffer.Write([]byte{ESC, 'd', byte(min(n, 255))})
}

// Cut cuts the paper; partial leaves a small hinge.
func (e *Encoder) Cut(partial bool) {
	mode := byte(0)
	if partial {
		mode = 1
	}
	e.buffer.Write([]byte{GS, 'V', mode})
}

// Bytes returns the commands written so far.
func (e *Encoder) Bytes() []byte {
	return e.buffer.Bytes()
}

// Bitmap packs img into rows of 1-bit pixels, most significant bit first, 1
// for black.
func Bitmap(img image.Image, threshold uint8) []byte {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	bytesPerLine := (width + 7) / 8
	bitmap := make([]byte, bytesPerLine*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, a := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
			if a == 0 {
				continue
			}
			// ITU-R 601 luma, 16-bit channels scaled to 8 bits
			luma := (299*r + 587*g + 114*bl) / 1000 >> 8
			if luma < uint32(threshold) {
				bitmap[y*bytesPerLine+x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return bitmap
}

// EncodeLabel renders img as a complete job: initialise, raster, feed and cut.
func EncodeLabel(img image.Image, cut bool) []byte {
	e := NewEncoder()
	e.Initialize()
	e.Raster(img)
	e.Feed(3)
	if cut {
		e.Cut(false)
	}
	return e.Bytes()
}
