package renderer

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

func template(w, h float64, elements ...labelformat.Element) *labelformat.Template {
	return &labelformat.Template{Version: "1.0", Width: w, Height: h, Elements: elements}
}

func filledRect(id string, x, y, w, h float64, fill string) labelformat.Element {
	return labelformat.Element{
		ID:    id,
		Type:  labelformat.TypeShape,
		Box:   labelformat.Box{X: x, Y: y, Width: w, Height: h},
		Shape: &labelformat.Shape{Kind: "rect", Fill: fill},
	}
}

func rgba(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func isWhite(c color.Color) bool {
	return rgba(c) == color.RGBA{R: 255, G: 255, B: 255, A: 255}
}

func darkPixels(img image.Image, r image.Rectangle) int {
	count := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := rgba(img.At(x, y))
			if int(c.R)+int(c.G)+int(c.B) < 3*128 {
				count++
			}
		}
	}
	return count
}

func TestRender_EmptyTemplateIsWhite(t *testing.T) {
	img, err := New(nil).Render(template(2, 1), nil, 300)
	require.NoError(t, err)

	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
	assert.Zero(t, darkPixels(img, img.Bounds()))
}

func TestRender_CanvasScalesWithDPI(t *testing.T) {
	r := New(nil)
	tpl := template(2.25, 1.25)

	screen, err := r.Render(tpl, nil, 96)
	require.NoError(t, err)
	printed, err := r.Render(tpl, nil, 300)
	require.NoError(t, err)

	assert.Equal(t, image.Pt(216, 120), screen.Bounds().Size())
	assert.Equal(t, image.Pt(675, 375), printed.Bounds().Size())
}

func TestRender_RejectsOversizedCanvas(t *testing.T) {
	r := New(nil)
	for _, dpi := range []float64{1e9, math.Inf(1), math.NaN()} {
		_, err := r.Render(template(2, 1), nil, dpi)
		assert.Error(t, err, "%g", dpi)
	}
}

func TestRender_ShapeFill(t *testing.T) {
	tpl := template(2, 1, filledRect("block", 0.5, 0.25, 1, 0.5, "#000"))
	img, err := New(nil).Render(tpl, nil, 100)
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{A: 255}, rgba(img.At(100, 50)))
	assert.True(t, isWhite(img.At(40, 40)), "outside the box stays white")
	assert.True(t, isWhite(img.At(160, 50)), "right of the box stays white")
}

func TestRender_GroupClipsChildren(t *testing.T) {
	tpl := template(2, 1, labelformat.Element{
		ID:    "clip",
		Type:  labelformat.TypeGroup,
		Box:   labelformat.Box{Width: 0.5, Height: 0.5},
		Group: &labelformat.Group{Children: []labelformat.Element{filledRect("big", 0, 0, 1, 1, "black")}},
	})
	img, err := New(nil).Render(tpl, nil, 100)
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{A: 255}, rgba(img.At(10, 10)))
	assert.True(t, isWhite(img.At(60, 60)), "child is cut at the group edge")
	assert.True(t, isWhite(img.At(60, 10)))
}

func TestRender_HiddenElementsAreSkipped(t *testing.T) {
	el := filledRect("gone", 0, 0, 2, 1, "black")
	el.Hidden = true
	img, err := New(nil).Render(template(2, 1, el), nil, 100)
	require.NoError(t, err)
	assert.Zero(t, darkPixels(img, img.Bounds()))
}

func TestRender_TextStaysInsideBox(t *testing.T) {
	tpl := template(3, 1, labelformat.Element{
		ID:   "title",
		Type: labelformat.TypeText,
		Box:  labelformat.Box{X: 0.5, Y: 0.25, Width: 1, Height: 0.5},
		Text: &labelformat.Text{Content: "WWWWWWWWWWWWWWWWWWWWWWWW", FontSize: 24},
	})
	img, err := New(nil).Render(tpl, nil, 100)
	require.NoError(t, err)

	box := image.Rect(50, 25, 150, 75)
	assert.Positive(t, darkPixels(img, box))

	outside := darkPixels(img, img.Bounds()) - darkPixels(img, box)
	assert.Zero(t, outside, "long text is clipped, not wrapped")
}

func TestRender_TextUsesBoundValue(t *testing.T) {
	tpl := template(2, 1, labelformat.Element{
		ID:   "name",
		Type: labelformat.TypeText,
		Box:  labelformat.Box{Width: 2, Height: 1},
		Text: &labelformat.Text{DataField: "name", FontSize: 18},
	})
	r := New(nil)

	short, err := r.Render(tpl, labelformat.NewRow([]string{"name"}, []string{"I"}), 100)
	require.NoError(t, err)
	long, err := r.Render(tpl, labelformat.NewRow([]string{"name"}, []string{"MMMMMMMM"}), 100)
	require.NoError(t, err)

	assert.Greater(t, darkPixels(long, long.Bounds()), darkPixels(short, short.Bounds()))
}

func TestRenderValues_DrawsGivenValues(t *testing.T) {
	tpl := template(2, 1, labelformat.Element{
		ID:   "name",
		Type: labelformat.TypeText,
		Box:  labelformat.Box{Width: 2, Height: 1},
		Text: &labelformat.Text{DataField: "name", FontSize: 18},
	})
	r := New(nil)

	fromRow, err := r.Render(tpl, labelformat.NewRow([]string{"name"}, []string{"MMMMMMMM"}), 100)
	require.NoError(t, err)
	fromValues, err := r.RenderValues(tpl, map[string]string{"name": "MMMMMMMM"}, 100)
	require.NoError(t, err)
	assert.Equal(t, fromRow.Pix, fromValues.Pix)

	short, err := r.RenderValues(tpl, map[string]string{"name": "I"}, 100)
	require.NoError(t, err)
	assert.Less(t, darkPixels(short, short.Bounds()), darkPixels(fromValues, fromValues.Bounds()))
}

func TestRender_InvalidBarcodeShowsPlaceholder(t *testing.T) {
	tpl := template(2, 1, labelformat.Element{
		ID:      "upc",
		Type:    labelformat.TypeBarcode,
		Box:     labelformat.Box{Width: 2, Height: 1},
		Barcode: &labelformat.Barcode{Content: "123", Symbology: labelformat.UPCA},
	})
	img, err := New(nil).Render(tpl, nil, 100)
	require.NoError(t, err)

	c := rgba(img.At(6, 6))
	assert.Equal(t, uint8(0xf0), c.R)
	assert.Equal(t, uint8(0xf0), c.G)
}

func TestRender_Barcode(t *testing.T) {
	tpl := template(2, 1, labelformat.Element{
		ID:      "sku",
		Type:    labelformat.TypeBarcode,
		Box:     labelformat.Box{Width: 2, Height: 1},
		Barcode: &labelformat.Barcode{Content: "ABC-123", Symbology: labelformat.CODE128},
	})
	img, err := New(nil).Render(tpl, nil, 100)
	require.NoError(t, err)

	row := image.Rect(0, 50, 200, 51)
	dark := darkPixels(img, row)
	assert.Positive(t, dark)
	assert.Less(t, dark, 200)
}

func solidPNG(t *testing.T, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func imageElement(src, fit string) labelformat.Element {
	return labelformat.Element{
		ID:    "logo",
		Type:  labelformat.TypeImage,
		Box:   labelformat.Box{Width: 1, Height: 0.5},
		Image: &labelformat.Image{Src: src, Fit: fit},
	}
}

func TestRender_ImageSources(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	payload := solidPNG(t, red)
	svgSrc := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect width="10" height="10" fill="#ff0000"/></svg>`

	tests := []struct {
		name string
		src  string
	}{
		{"data uri", "data:image/png;base64," + payload},
		{"bare base64", payload},
		{"inline svg", svgSrc},
		{"svg data uri", "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svgSrc))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := New(nil).Render(template(1, 0.5, imageElement(tt.src, FitStretch)), nil, 100)
			require.NoError(t, err)

			c := rgba(img.At(50, 25))
			assert.Greater(t, int(c.R), 200)
			assert.Less(t, int(c.G), 50)
		})
	}
}

func TestRender_ImageContainKeepsAspect(t *testing.T) {
	src := "data:image/png;base64," + solidPNG(t, color.Black)
	img, err := New(nil).Render(template(1, 0.5, imageElement(src, FitContain)), nil, 100)
	require.NoError(t, err)

	// a square source in a 100x50 box is 50x50 and centred
	assert.Equal(t, color.RGBA{A: 255}, rgba(img.At(50, 25)))
	assert.True(t, isWhite(img.At(10, 25)))
	assert.True(t, isWhite(img.At(90, 25)))
}

func TestRender_ImageGrayscale(t *testing.T) {
	el := imageElement("data:image/png;base64,"+solidPNG(t, color.RGBA{R: 255, A: 255}), FitStretch)
	el.Image.Grayscale = true
	img, err := New(nil).Render(template(1, 0.5, el), nil, 100)
	require.NoError(t, err)

	c := rgba(img.At(50, 25))
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
}

func TestRender_MissingImageDoesNotFail(t *testing.T) {
	img, err := New(nil).Render(template(1, 0.5, imageElement("/nonexistent/logo.png", "")), nil, 100)
	require.NoError(t, err)

	c := rgba(img.At(50, 3))
	assert.Equal(t, uint8(0xee), c.R)
}

func TestRender_ImageFilesStayInAssetsDir(t *testing.T) {
	red, err := base64.StdEncoding.DecodeString(solidPNG(t, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)

	parent := t.TempDir()
	assets := filepath.Join(parent, "assets")
	require.NoError(t, os.Mkdir(assets, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "logo.png"), red, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.png"), red, 0644))

	tests := []struct {
		name   string
		assets string
		src    string
		drawn  bool
	}{
		{"relative", assets, "logo.png", true},
		{"absolute inside", assets, filepath.Join(assets, "logo.png"), true},
		{"parent", assets, "../secret.png", false},
		{"absolute outside", assets, filepath.Join(parent, "secret.png"), false},
		{"no assets dir", "", filepath.Join(assets, "logo.png"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil, WithAssetsDir(tt.assets))
			img, err := r.Render(template(1, 0.5, imageElement(tt.src, FitStretch)), nil, 100)
			require.NoError(t, err)

			c := rgba(img.At(50, 3))
			if tt.drawn {
				assert.Equal(t, uint8(255), c.R)
				assert.Zero(t, c.G)
			} else {
				assert.Equal(t, uint8(0xee), c.R, "placeholder")
			}
		})
	}
}

func TestRender_ImageCacheIsBounded(t *testing.T) {
	r := New(nil)
	for i := 0; i < imageCacheSize+16; i++ {
		src := "data:image/png;base64," + solidPNG(t, color.RGBA{R: uint8(i), A: 255})
		_, err := r.Render(template(1, 0.5, imageElement(src, FitStretch)), nil, 20)
		require.NoError(t, err)
	}
	assert.Equal(t, imageCacheSize, r.images.Len())
}

func TestRender_ConcurrentRendersAreIdentical(t *testing.T) {
	tpl := template(2, 1,
		filledRect("frame", 0, 0, 2, 1, ""),
		labelformat.Element{
			ID: "sku", Type: labelformat.TypeText,
			Box:  labelformat.Box{X: 0.1, Y: 0.1, Width: 1.8, Height: 0.3},
			Text: &labelformat.Text{DataField: "sku", Align: "center"},
		},
		labelformat.Element{
			ID: "code", Type: labelformat.TypeBarcode,
			Box:     labelformat.Box{X: 0.1, Y: 0.45, Width: 1.8, Height: 0.5},
			Barcode: &labelformat.Barcode{DataField: "upc", Symbology: labelformat.EAN13, DisplayValue: true},
		},
	)
	row := labelformat.NewRow([]string{"sku", "upc"}, []string{"ABC-123", "590123412345"})
	r := New(nil)

	want, err := r.Render(tpl, row, 300)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*image.RGBA, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := r.Render(tpl, row, 300)
			if err == nil {
				results[i] = img
			}
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		require.NotNil(t, got, "render %d", i)
		assert.True(t, bytes.Equal(want.Pix, got.Pix), "render %d differs", i)
	}
}

func TestEncodePNG(t *testing.T) {
	img, err := New(nil).Render(template(1, 1, filledRect("dot", 0.25, 0.25, 0.5, 0.5, "red")), nil, 50)
	require.NoError(t, err)

	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	assert.Equal(t, rgba(img.At(25, 25)), rgba(decoded.At(25, 25)))
}

func TestParseColor(t *testing.T) {
	fallback := color.RGBA{R: 1, G: 2, B: 3, A: 255}
	tests := []struct {
		in   string
		want color.Color
	}{
		{"", fallback},
		{"#fff", color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{"#FF8000", color.RGBA{R: 255, G: 128, A: 255}},
		{"#00000080", color.RGBA{A: 128}},
		{"navy", color.RGBA{B: 128, A: 255}},
		{"none", color.Transparent},
		{"#12", fallback},
		{"#zzzzzz", fallback},
		{"rgb(1,2,3)", fallback},
	}
	for _, tt := range tests {
		assert.Equal(t, rgba(tt.want), rgba(parseColor(tt.in, fallback)), tt.in)
	}
}
