package layout

import (
	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// absolute places elements at their stored boxes, relative to origin. Group
// children are relative to the group.
func (b *builder) absolute(elements []labelformat.Element, origin units.Rect) ([]*Node, error) {
	nodes := make([]*Node, 0, len(elements))
	for i := range elements {
		el := &elements[i]
		if el.Hidden {
			continue
		}

		box := units.Rect{
			X: origin.X + el.Box.X,
			Y: origin.Y + el.Box.Y,
			W: el.Box.Width,
			H: el.Box.Height,
		}
		if el.Type == labelformat.TypeGroup && len(el.Children()) == 0 {
			box.W, box.H = 0, 0
		}

		n, err := b.node(el, box)
		if err != nil {
			return nil, err
		}
		if children := el.Children(); len(children) > 0 {
			if n.Children, err = b.absolute(children, box); err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
