// Package layout resolves a template and a data row into a tree of positioned
// boxes. Boxes are canvas-absolute and in inches; pixel boxes are derived per
// DPI only when drawing, so every resolution sees the same proportions.
package layout

import (
	"fmt"

	"github.com/thereceipt/label-engine/internal/binding"
	"github.com/thereceipt/label-engine/internal/fonts"
	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// Node is one resolved element.
type Node struct {
	ID       string
	Kind     labelformat.ElementType
	Box      units.Rect
	Value    string // resolved text or barcode value
	Element  *labelformat.Element
	Children []*Node
}

// Tree is the resolved layout of one label.
type Tree struct {
	Width  float64
	Height float64
	Mode   labelformat.LayoutMode
	Nodes  []*Node
}

// PixelNode is a node's box at one DPI.
type PixelNode struct {
	ID   string
	Rect units.PixelRect
}

// Option customises a Resolve call.
type Option func(*builder)

// WithFonts measures flow text with reg instead of the embedded fonts. It
// should be the registry the tree is drawn with.
func WithFonts(reg *fonts.Registry) Option {
	return func(b *builder) {
		if reg != nil {
			b.fonts = reg
		}
	}
}

// WithValues uses values, keyed by element id, for text and barcode elements
// instead of resolving them from the row. Elements without an entry are still
// resolved.
func WithValues(values map[string]string) Option {
	return func(b *builder) {
		b.values = values
	}
}

// Resolve lays out t for row. A nil row is a preview without data. The
// template is only read.
func Resolve(t *labelformat.Template, row labelformat.DataRow, r *binding.Resolver, opts ...Option) (*Tree, error) {
	if t.Width <= 0 || t.Height <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %gx%g", t.Width, t.Height)
	}
	if r == nil {
		r = binding.ForTemplate(t)
	}

	b := &builder{tpl: t, row: row, resolver: r, fonts: fonts.Default()}
	for _, opt := range opts {
		opt(b)
	}
	tree := &Tree{Width: t.Width, Height: t.Height, Mode: t.Mode()}
	canvas := units.Rect{W: t.Width, H: t.Height}

	var err error
	switch tree.Mode {
	case labelformat.LayoutAbsolute:
		tree.Nodes, err = b.absolute(t.Elements, canvas)
	case labelformat.LayoutFlow:
		tree.Nodes, err = b.flow(t.Elements, canvas, t.Flow)
	default:
		err = fmt.Errorf("unknown layout mode: %s", tree.Mode)
	}
	if err != nil {
		return nil, err
	}
	return tree, nil
}

type builder struct {
	tpl      *labelformat.Template
	row      labelformat.DataRow
	resolver *binding.Resolver
	fonts    *fonts.Registry
	values   map[string]string
}

// text is the value of a text element, without logging binding warnings.
func (b *builder) text(el *labelformat.Element) string {
	if v, ok := b.values[el.ID]; ok {
		return v
	}
	text, _ := b.resolver.ResolveDetailed(el, b.row)
	return text
}

func (b *builder) node(el *labelformat.Element, box units.Rect) (*Node, error) {
	if err := checkPayload(el); err != nil {
		return nil, err
	}
	n := &Node{ID: el.ID, Kind: el.Type, Box: box, Element: el}
	switch el.Type {
	case labelformat.TypeText:
		if v, ok := b.values[el.ID]; ok {
			n.Value = v
		} else {
			n.Value = b.resolver.Resolve(el, b.row)
		}
	case labelformat.TypeBarcode:
		if v, ok := b.values[el.ID]; ok {
			n.Value = v
		} else {
			n.Value = b.resolver.ResolveBarcode(el, b.row)
		}
	case labelformat.TypeImage, labelformat.TypeShape, labelformat.TypeGroup:
	default:
		return nil, fmt.Errorf("element '%s': unsupported type %s", el.ID, el.Type)
	}
	return n, nil
}

// Walk visits nodes depth-first in paint order.
func (t *Tree) Walk(fn func(n *Node)) {
	var visit func([]*Node)
	visit = func(nodes []*Node) {
		for _, n := range nodes {
			fn(n)
			visit(n.Children)
		}
	}
	visit(t.Nodes)
}

// Find returns the node with id, or nil.
func (t *Tree) Find(id string) *Node {
	var found *Node
	t.Walk(func(n *Node) {
		if found == nil && n.ID == id {
			found = n
		}
	})
	return found
}

// Pixels flattens the tree into pixel boxes at dpi, in paint order.
func (t *Tree) Pixels(dpi float64) []PixelNode {
	var out []PixelNode
	t.Walk(func(n *Node) {
		out = append(out, PixelNode{ID: n.ID, Rect: n.Box.ToPixels(dpi)})
	})
	return out
}

// CanvasPixels is the label size at dpi.
func (t *Tree) CanvasPixels(dpi float64) (int, int) {
	return units.InchesToPixels(t.Width, dpi), units.InchesToPixels(t.Height, dpi)
}

// checkPayload rejects elements whose payload does not match their type.
// Empty groups are allowed.
func checkPayload(el *labelformat.Element) error {
	var ok bool
	switch el.Type {
	case labelformat.TypeText:
		ok = el.Text != nil
	case labelformat.TypeBarcode:
		ok = el.Barcode != nil
	case labelformat.TypeImage:
		ok = el.Image != nil
	case labelformat.TypeShape:
		ok = el.Shape != nil
	case labelformat.TypeGroup:
		ok = true
	default:
		return fmt.Errorf("element '%s': unsupported type %s", el.ID, el.Type)
	}
	if !ok {
		return fmt.Errorf("element '%s': missing %s properties", el.ID, el.Type)
	}
	return nil
}
