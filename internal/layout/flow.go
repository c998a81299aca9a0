package layout

import (
	"math"

	"golang.org/x/image/font"

	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

const (
	defaultFontSize = 12.0 // CSS px
	lineHeight      = 1.2

	// height/width of a barcode without an explicit height
	linearAspect = 0.5
	qrAspect     = 1.0
)

type flowSettings struct {
	row     bool
	justify labelformat.Justify
	align   labelformat.Align
	gap     float64 // inches
	padding float64
}

func settings(f *labelformat.Flow) flowSettings {
	s := flowSettings{row: true, justify: labelformat.JustifyStart, align: labelformat.AlignStart}
	if f == nil {
		return s
	}
	s.row = f.Direction != labelformat.DirectionColumn
	if f.Justify != "" {
		s.justify = f.Justify
	}
	if f.Align != "" {
		s.align = f.Align
	}
	s.gap = units.CSSPxToInches(f.GapPx)
	s.padding = units.CSSPxToInches(f.PaddingPx)
	return s
}

func margin(el *labelformat.Element) float64 {
	if el.Flow == nil {
		return 0
	}
	return units.CSSPxToInches(el.Flow.MarginPx)
}

// main and cross pick the axis components of a (w, h) pair.
func (s flowSettings) main(w, h float64) float64 {
	if s.row {
		return w
	}
	return h
}

func (s flowSettings) cross(w, h float64) float64 {
	if s.row {
		return h
	}
	return w
}

type flowItem struct {
	el     *labelformat.Element
	w, h   float64
	margin float64
}

// flow lays out elements inside container, whose padding is applied here.
func (b *builder) flow(elements []labelformat.Element, container units.Rect, f *labelformat.Flow) ([]*Node, error) {
	s := settings(f)
	content := container.Inset(s.padding)

	items := make([]flowItem, 0, len(elements))
	for i := range elements {
		el := &elements[i]
		if el.Hidden {
			continue
		}
		w, h := b.measure(el, content.W, content.H)
		items = append(items, flowItem{el: el, w: w, h: h, margin: margin(el)})
	}
	if len(items) == 0 {
		return []*Node{}, nil
	}

	availMain := s.main(content.W, content.H)
	availCross := s.cross(content.W, content.H)

	used := s.gap * float64(len(items)-1)
	for _, it := range items {
		used += s.main(it.w, it.h) + 2*it.margin
	}
	offset, between := justify(s.justify, availMain-used, len(items))

	nodes := make([]*Node, 0, len(items))
	pos := offset
	for _, it := range items {
		mainSize := s.main(it.w, it.h)
		crossSize := s.cross(it.w, it.h)

		var crossOffset float64
		switch s.align {
		case labelformat.AlignCenter:
			crossOffset = (availCross - crossSize - 2*it.margin) / 2
		case labelformat.AlignEnd:
			crossOffset = availCross - crossSize - 2*it.margin
		case labelformat.AlignStretch:
			crossSize = math.Max(0, availCross-2*it.margin)
		}
		crossOffset = math.Max(0, crossOffset)

		var box units.Rect
		if s.row {
			box = units.Rect{
				X: content.X + pos + it.margin,
				Y: content.Y + crossOffset + it.margin,
				W: mainSize,
				H: crossSize,
			}
		} else {
			box = units.Rect{
				X: content.X + crossOffset + it.margin,
				Y: content.Y + pos + it.margin,
				W: crossSize,
				H: mainSize,
			}
		}
		pos += mainSize + 2*it.margin + s.gap + between

		n, err := b.node(it.el, box)
		if err != nil {
			return nil, err
		}
		if children := it.el.Children(); len(children) > 0 {
			if n.Children, err = b.flow(children, box, it.el.Flow); err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// justify returns the main-axis start offset and the extra space between items.
// Negative free space is treated as zero.
func justify(mode labelformat.Justify, free float64, n int) (offset, between float64) {
	if free < 0 || n == 0 {
		return 0, 0
	}
	switch mode {
	case labelformat.JustifyCenter:
		return free / 2, 0
	case labelformat.JustifyEnd:
		return free, 0
	case labelformat.JustifySpaceBetween:
		if n > 1 {
			return 0, free / float64(n-1)
		}
		return 0, 0
	case labelformat.JustifySpaceAround:
		between = free / float64(n)
		return between / 2, between
	case labelformat.JustifySpaceEvenly:
		between = free / float64(n+1)
		return between, between
	default:
		return 0, 0
	}
}

// measure returns the element's border-box size in inches given the parent's
// content size. Percentages win over explicit sizes, which win over intrinsic
// sizes.
func (b *builder) measure(el *labelformat.Element, availW, availH float64) (float64, float64) {
	if el.Type == labelformat.TypeGroup && len(el.Children()) == 0 {
		return 0, 0
	}
	if checkPayload(el) != nil {
		return 0, 0
	}

	w, wSet := resolveLength(el.Box.WidthPercent, el.Box.Width, availW)
	h, hSet := resolveLength(el.Box.HeightPercent, el.Box.Height, availH)
	if wSet && hSet {
		return w, h
	}

	switch el.Type {
	case labelformat.TypeText:
		size := el.Text.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		if !wSet {
			w = math.Min(availW, b.textWidth(el, size))
		}
		if !hSet {
			h = units.CSSPxToInches(size * lineHeight)
		}
	case labelformat.TypeBarcode:
		if !wSet {
			w = availW
		}
		if !hSet {
			aspect := linearAspect
			if el.Barcode.Symbology == labelformat.QR {
				aspect = qrAspect
			}
			h = w * aspect
		}
	case labelformat.TypeImage:
		side := math.Min(availW, availH)
		if !wSet {
			w = side
		}
		if !hSet {
			h = w
		}
	case labelformat.TypeShape:
		if !wSet {
			w = availW
		}
		if !hSet {
			h = 0
			if el.Shape.Kind == "line" {
				h = units.CSSPxToInches(math.Max(1, el.Shape.StrokeWidth))
			}
		}
	case labelformat.TypeGroup:
		gw, gh := b.intrinsicGroup(el, w, wSet, availW, availH)
		if !wSet {
			w = gw
		}
		if !hSet {
			h = gh
		}
	}
	return w, h
}

func resolveLength(percent, explicit, avail float64) (float64, bool) {
	switch {
	case percent > 0:
		return percent / 100 * avail, true
	case explicit > 0:
		return explicit, true
	default:
		return 0, false
	}
}

// intrinsicGroup sums children along the group's main axis and takes the
// largest along the cross axis, plus gaps, margins and padding.
func (b *builder) intrinsicGroup(el *labelformat.Element, w float64, wSet bool, availW, availH float64) (float64, float64) {
	s := settings(el.Flow)
	innerW := availW
	if wSet {
		innerW = w
	}
	innerW = math.Max(0, innerW-2*s.padding)
	innerH := math.Max(0, availH-2*s.padding)

	var mainSum, crossMax float64
	count := 0
	for i, child := range el.Children() {
		if child.Hidden {
			continue
		}
		cw, ch := b.measure(&el.Children()[i], innerW, innerH)
		m := margin(&child)
		mainSum += s.main(cw, ch) + 2*m
		crossMax = math.Max(crossMax, s.cross(cw, ch)+2*m)
		count++
	}
	if count == 0 {
		return 0, 0
	}
	mainSum += s.gap * float64(count-1)

	if s.row {
		return mainSum + 2*s.padding, crossMax + 2*s.padding
	}
	return crossMax + 2*s.padding, mainSum + 2*s.padding
}

// textWidth measures the resolved text at size CSS px with the builder's
// fonts, converted to inches.
func (b *builder) textWidth(el *labelformat.Element, size float64) float64 {
	text := b.text(el)
	face := b.fonts.Face(b.tpl.Fonts, el.Text.Font, el.Text.FontWeight, size)
	defer face.Close()
	adv := font.MeasureString(face, text)
	return units.CSSPxToInches(float64(adv) / 64)
}
