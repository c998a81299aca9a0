// Package renderer draws resolved label layouts to raster images
package renderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/fogleman/gg"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/draw"

	"github.com/thereceipt/label-engine/internal/binding"
	"github.com/thereceipt/label-engine/internal/fonts"
	"github.com/thereceipt/label-engine/internal/layout"
	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

const (
	// maxCanvasPixels bounds the canvas of a single label.
	maxCanvasPixels = 1 << 27

	imageCacheSize = 64
)

// Renderer converts label layouts to images. It holds no per-render state and
// is safe for concurrent use.
type Renderer struct {
	fonts  *fonts.Registry
	assets string
	images *lru.Cache[[32]byte, source] // sha256(src) -> decoded source, never mutated
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithAssetsDir lets image sources name files inside dir. Relative names are
// resolved against dir; names that leave it are refused. Without an assets
// dir only inline sources are drawn.
func WithAssetsDir(dir string) Option {
	return func(r *Renderer) {
		r.assets = dir
	}
}

// New creates a renderer. A nil registry uses the embedded fonts only.
func New(reg *fonts.Registry, opts ...Option) *Renderer {
	if reg == nil {
		reg = fonts.Default()
	}
	images, _ := lru.New[[32]byte, source](imageCacheSize)
	r := &Renderer{fonts: reg, images: images}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render lays out tpl for row and draws it at dpi.
func (r *Renderer) Render(tpl *labelformat.Template, row labelformat.DataRow, dpi float64) (*image.RGBA, error) {
	return r.RenderWith(tpl, row, binding.ForTemplate(tpl), dpi)
}

// RenderWith is Render with an explicit resolver.
func (r *Renderer) RenderWith(tpl *labelformat.Template, row labelformat.DataRow, res *binding.Resolver, dpi float64) (*image.RGBA, error) {
	tree, err := r.Layout(tpl, row, res)
	if err != nil {
		return nil, err
	}
	return r.RenderTree(tree, tpl.Fonts, dpi)
}

// RenderValues draws tpl with values, keyed by element id, already resolved.
func (r *Renderer) RenderValues(tpl *labelformat.Template, values map[string]string, dpi float64) (*image.RGBA, error) {
	tree, err := r.Layout(tpl, nil, binding.ForTemplate(tpl).Quiet(), layout.WithValues(values))
	if err != nil {
		return nil, err
	}
	return r.RenderTree(tree, tpl.Fonts, dpi)
}

// Layout resolves tpl for row, measuring flow text with the renderer's fonts.
func (r *Renderer) Layout(tpl *labelformat.Template, row labelformat.DataRow, res *binding.Resolver, opts ...layout.Option) (*layout.Tree, error) {
	tree, err := layout.Resolve(tpl, row, res, append([]layout.Option{layout.WithFonts(r.fonts)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve layout: %w", err)
	}
	return tree, nil
}

// RenderTree draws an already resolved tree. families is the template's font
// table.
func (r *Renderer) RenderTree(tree *layout.Tree, families map[string]string, dpi float64) (*image.RGBA, error) {
	dpi = units.EffectiveDPI(dpi)
	if math.IsInf(dpi, 0) || math.IsNaN(dpi) {
		return nil, fmt.Errorf("dpi must be finite, got %g", dpi)
	}
	if area := tree.Width * dpi * tree.Height * dpi; area > maxCanvasPixels {
		return nil, fmt.Errorf("canvas of %gx%g in at %g dpi is too large", tree.Width, tree.Height, dpi)
	}
	width, height := tree.CanvasPixels(dpi)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas is empty at %g dpi", dpi)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	ctx := gg.NewContextForRGBA(canvas)
	ctx.SetColor(color.White)
	ctx.Clear()

	p := &pass{r: r, canvas: canvas, dpi: dpi, families: families}
	if err := p.drawNodes(tree.Nodes, canvas.Bounds()); err != nil {
		return nil, err
	}
	return canvas, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// pass is the state of one RenderTree call.
type pass struct {
	r        *Renderer
	canvas   *image.RGBA
	dpi      float64
	families map[string]string
}

func (p *pass) drawNodes(nodes []*layout.Node, clip image.Rectangle) error {
	for _, n := range nodes {
		if err := p.drawNode(n, clip); err != nil {
			return fmt.Errorf("failed to render element '%s': %w", n.ID, err)
		}
	}
	return nil
}

func (p *pass) drawNode(n *layout.Node, clip image.Rectangle) error {
	pr := n.Box.ToPixels(p.dpi)
	bounds := image.Rect(pr.X, pr.Y, pr.X+pr.W, pr.Y+pr.H)

	if n.Kind == labelformat.TypeGroup {
		return p.drawGroup(n, bounds, clip)
	}
	if pr.W <= 0 || pr.H <= 0 {
		return nil
	}

	var img image.Image
	switch n.Kind {
	case labelformat.TypeText:
		img = p.drawText(n, pr.W, pr.H)
	case labelformat.TypeBarcode:
		img = p.drawBarcode(n, pr.W, pr.H)
	case labelformat.TypeImage:
		img = p.drawImage(n, pr.W, pr.H)
	case labelformat.TypeShape:
		img = p.drawShape(n, pr.W, pr.H)
	default:
		return fmt.Errorf("unsupported element type: %s", n.Kind)
	}
	p.composite(img, bounds, clip)
	return nil
}

// composite draws a box-sized image at bounds, cut to clip.
func (p *pass) composite(img image.Image, bounds, clip image.Rectangle) {
	target := bounds.Intersect(clip)
	if target.Empty() {
		return
	}
	src := img.Bounds().Min.Add(target.Min.Sub(bounds.Min))
	draw.Draw(p.canvas, target, img, src, draw.Over)
}

// newLayer returns a transparent w×h image with a drawing context.
func newLayer(w, h int) (*image.RGBA, *gg.Context) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	return img, gg.NewContextForRGBA(img)
}
