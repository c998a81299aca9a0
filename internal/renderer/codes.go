package renderer

import (
	"image"

	"github.com/thereceipt/label-engine/internal/barcode"
	"github.com/thereceipt/label-engine/internal/layout"
)

func (p *pass) drawBarcode(n *layout.Node, w, h int) image.Image {
	b := n.Element.Barcode
	return barcode.Render(n.Value, b.Symbology, w, h, b.DisplayValue)
}
