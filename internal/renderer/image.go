package renderer

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/flanksource/commons/logger"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/thereceipt/label-engine/internal/layout"
)

const (
	FitContain = "contain"
	FitCover   = "cover"
	FitStretch = "stretch"
)

// source is a decoded image src. Exactly one field is set.
type source struct {
	raster image.Image
	svg    []byte
}

// drawImage scales the source into the box. Sources that cannot be loaded are
// drawn as a crossed-out box so the label still shows where the image goes.
func (p *pass) drawImage(n *layout.Node, w, h int) image.Image {
	props := n.Element.Image
	src, err := p.r.load(props.Src)
	if err != nil {
		logger.Warnf("image '%s': %v", n.ID, err)
		return missingImage(w, h)
	}

	var img image.Image
	if src.svg != nil {
		img, err = rasterizeSVG(src.svg, props.Fit, w, h)
		if err != nil {
			logger.Warnf("image '%s': %v", n.ID, err)
			return missingImage(w, h)
		}
	} else {
		img = fitRaster(src.raster, props.Fit, w, h)
	}

	if props.Grayscale {
		img = imaging.Grayscale(img)
	}
	return img
}

var errNoAssets = errors.New("file image sources are disabled")

// load decodes src, caching recent sources. src is a data URI, inline SVG
// markup, a file in the assets dir, or bare base64.
func (r *Renderer) load(src string) (source, error) {
	if src == "" {
		return source{}, errors.New("no image source")
	}
	key := sha256.Sum256([]byte(src))
	if cached, ok := r.images.Get(key); ok {
		return cached, nil
	}

	data, err := r.readSource(src)
	if err != nil {
		return source{}, err
	}

	var s source
	if isSVG(data) {
		s.svg = data
	} else {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return source{}, fmt.Errorf("failed to decode image: %w", err)
		}
		s.raster = img
	}
	r.images.Add(key, s)
	return s, nil
}

func (r *Renderer) readSource(src string) ([]byte, error) {
	trimmed := strings.TrimSpace(src)
	switch {
	case strings.HasPrefix(trimmed, "data:"):
		comma := strings.IndexByte(trimmed, ',')
		if comma < 0 {
			return nil, errors.New("malformed data URI")
		}
		meta, payload := trimmed[5:comma], trimmed[comma+1:]
		if strings.HasSuffix(meta, ";base64") {
			return base64.StdEncoding.DecodeString(payload)
		}
		return []byte(payload), nil
	case strings.HasPrefix(trimmed, "<"):
		return []byte(trimmed), nil
	}

	data, readErr := r.readAsset(src)
	if readErr == nil {
		return data, nil
	}
	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		if errors.Is(readErr, errNoAssets) {
			return nil, readErr
		}
		if errors.Is(readErr, os.ErrNotExist) {
			return nil, fmt.Errorf("image not found: %s", truncate(src, 64))
		}
		return nil, fmt.Errorf("failed to read image: %w", readErr)
	}
	return data, nil
}

// readAsset reads name from the assets dir. The root refuses names that
// escape it, including through symlinks.
func (r *Renderer) readAsset(name string) ([]byte, error) {
	if r.assets == "" {
		return nil, errNoAssets
	}
	if filepath.IsAbs(name) {
		base, err := filepath.Abs(r.assets)
		if err != nil {
			return nil, err
		}
		if name, err = filepath.Rel(base, name); err != nil {
			return nil, err
		}
	}

	root, err := os.OpenRoot(r.assets)
	if err != nil {
		return nil, fmt.Errorf("failed to open assets dir: %w", err)
	}
	defer root.Close()
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg"))
}

// fitRaster places img in a w×h box according to fit; contain is the default.
func fitRaster(img image.Image, fit string, w, h int) image.Image {
	switch fit {
	case FitStretch:
		return imaging.Resize(img, w, h, imaging.Lanczos)
	case FitCover:
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
	}

	b := img.Bounds()
	cw, ch := containSize(float64(b.Dx()), float64(b.Dy()), w, h)
	if cw == 0 || ch == 0 {
		return image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	return imaging.PasteCenter(image.NewNRGBA(image.Rect(0, 0, w, h)), imaging.Resize(img, cw, ch, imaging.Lanczos))
}

// containSize scales (iw, ih) to the largest size that fits w×h.
func containSize(iw, ih float64, w, h int) (int, int) {
	if iw <= 0 || ih <= 0 {
		return 0, 0
	}
	scale := math.Min(float64(w)/iw, float64(h)/ih)
	return max(1, int(math.Round(iw*scale))), max(1, int(math.Round(ih*scale)))
}

func rasterizeSVG(data []byte, fit string, w, h int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		vw, vh = float64(w), float64(h)
	}

	tw, th := w, h
	switch fit {
	case FitStretch:
	case FitCover:
		scale := math.Max(float64(w)/vw, float64(h)/vh)
		tw, th = int(math.Ceil(vw*scale)), int(math.Ceil(vh*scale))
	default:
		tw, th = containSize(vw, vh, w, h)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, tw, th))
	icon.SetTarget(0, 0, float64(tw), float64(th))
	scanner := rasterx.NewScannerGV(tw, th, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(tw, th, scanner)
	icon.Draw(raster, 1.0)

	switch fit {
	case FitStretch:
		return rgba, nil
	case FitCover:
		return imaging.CropCenter(rgba, w, h), nil
	}
	return imaging.PasteCenter(image.NewNRGBA(image.Rect(0, 0, w, h)), rgba), nil
}

func missingImage(w, h int) image.Image {
	img, ctx := newLayer(w, h)
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}), image.Point{}, draw.Src)
	ctx.SetColor(color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff})
	ctx.SetLineWidth(1)
	ctx.DrawRectangle(0.5, 0.5, float64(w)-1, float64(h)-1)
	ctx.DrawLine(0, 0, float64(w), float64(h))
	ctx.DrawLine(float64(w), 0, 0, float64(h))
	ctx.Stroke()
	return img
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
