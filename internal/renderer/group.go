package renderer

import (
	"image"

	"github.com/thereceipt/label-engine/internal/layout"
)

// drawGroup paints a group's children cut to the group box. Groups have no
// decoration of their own.
func (p *pass) drawGroup(n *layout.Node, bounds, clip image.Rectangle) error {
	inner := bounds.Intersect(clip)
	if inner.Empty() {
		return nil
	}
	return p.drawNodes(n.Children, inner)
}
