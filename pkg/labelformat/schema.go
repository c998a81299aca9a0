// Package labelformat defines the types for the .label template format
package labelformat

// Template represents the root structure of a .label file
type Template struct {
	Version    string            `json:"version" yaml:"version"`
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	Width      float64           `json:"width" yaml:"width"`   // inches
	Height     float64           `json:"height" yaml:"height"` // inches
	DPI        float64           `json:"dpi,omitempty" yaml:"dpi,omitempty"`
	LayoutMode LayoutMode        `json:"layoutMode,omitempty" yaml:"layoutMode,omitempty"`
	Flow       *Flow             `json:"flow,omitempty" yaml:"flow,omitempty"` // root container in flow mode
	Fonts      map[string]string `json:"fonts,omitempty" yaml:"fonts,omitempty"` // family -> font file
	Columns    ColumnMapping     `json:"columnMapping,omitempty" yaml:"columnMapping,omitempty"`
	Elements   []Element         `json:"elements" yaml:"elements"`
}

type LayoutMode string

const (
	LayoutAbsolute LayoutMode = "absolute"
	LayoutFlow     LayoutMode = "flow"
)

// Mode returns the template's layout mode, defaulting to absolute.
func (t *Template) Mode() LayoutMode {
	if t.LayoutMode == "" {
		return LayoutAbsolute
	}
	return t.LayoutMode
}

// ColumnMapping binds element ids to data columns. It is equivalent to setting
// dataField on the element and takes precedence when both are present.
type ColumnMapping map[string]string

type ElementType string

const (
	TypeText    ElementType = "text"
	TypeBarcode ElementType = "barcode"
	TypeImage   ElementType = "image"
	TypeShape   ElementType = "shape"
	TypeGroup   ElementType = "group"
)

// Element is one visual unit of a label. Type selects which payload is set;
// exactly one of Text, Barcode, Image, Shape and Group matches it.
type Element struct {
	ID     string      `json:"id" yaml:"id"`
	Type   ElementType `json:"type" yaml:"type"`
	Box    Box         `json:"box" yaml:"box"`
	Flow   *Flow       `json:"flow,omitempty" yaml:"flow,omitempty"`
	Hidden bool        `json:"hidden,omitempty" yaml:"hidden,omitempty"`

	Text    *Text    `json:"text,omitempty" yaml:"text,omitempty"`
	Barcode *Barcode `json:"barcode,omitempty" yaml:"barcode,omitempty"`
	Image   *Image   `json:"image,omitempty" yaml:"image,omitempty"`
	Shape   *Shape   `json:"shape,omitempty" yaml:"shape,omitempty"`
	Group   *Group   `json:"group,omitempty" yaml:"group,omitempty"`
}

// Box is either absolute (X, Y, Width, Height in inches relative to the parent
// origin) or relative to the parent's content box in flow mode (WidthPercent,
// HeightPercent). In flow mode an explicit Width/Height is used when the
// percentage is zero.
type Box struct {
	X             float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y             float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Width         float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height        float64 `json:"height,omitempty" yaml:"height,omitempty"`
	WidthPercent  float64 `json:"widthPercent,omitempty" yaml:"widthPercent,omitempty"`
	HeightPercent float64 `json:"heightPercent,omitempty" yaml:"heightPercent,omitempty"`
}

// Flow holds flexbox-style container and item settings. Lengths are CSS pixels.
type Flow struct {
	Direction Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	Justify   Justify   `json:"justify,omitempty" yaml:"justify,omitempty"`
	Align     Align     `json:"align,omitempty" yaml:"align,omitempty"`
	GapPx     float64   `json:"gapPx,omitempty" yaml:"gapPx,omitempty"`
	PaddingPx float64   `json:"paddingPx,omitempty" yaml:"paddingPx,omitempty"`
	MarginPx  float64   `json:"marginPx,omitempty" yaml:"marginPx,omitempty"`
}

type Direction string

const (
	DirectionRow    Direction = "row"
	DirectionColumn Direction = "column"
)

type Justify string

const (
	JustifyStart        Justify = "flex-start"
	JustifyCenter       Justify = "center"
	JustifyEnd          Justify = "flex-end"
	JustifySpaceBetween Justify = "space-between"
	JustifySpaceAround  Justify = "space-around"
	JustifySpaceEvenly  Justify = "space-evenly"
)

type Align string

const (
	AlignStart   Align = "flex-start"
	AlignCenter  Align = "center"
	AlignEnd     Align = "flex-end"
	AlignStretch Align = "stretch"
)

// Text is a single line of text, either literal (Content) or bound (DataField).
type Text struct {
	Content    string  `json:"content,omitempty" yaml:"content,omitempty"`
	DataField  string  `json:"dataField,omitempty" yaml:"dataField,omitempty"`
	Prefix     string  `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix     string  `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty" yaml:"fontSize,omitempty"` // CSS px
	FontWeight string  `json:"fontWeight,omitempty" yaml:"fontWeight,omitempty"` // normal, bold
	Font       string  `json:"font,omitempty" yaml:"font,omitempty"`
	Color      string  `json:"color,omitempty" yaml:"color,omitempty"`
	Align      string  `json:"align,omitempty" yaml:"align,omitempty"` // left, center, right
}

type Symbology string

const (
	EAN13   Symbology = "EAN13"
	CODE128 Symbology = "CODE128"
	CODE39  Symbology = "CODE39"
	UPCA    Symbology = "UPC_A"
	ITF     Symbology = "ITF"
	QR      Symbology = "QR"
)

type Barcode struct {
	Content      string    `json:"content,omitempty" yaml:"content,omitempty"`
	DataField    string    `json:"dataField,omitempty" yaml:"dataField,omitempty"`
	Symbology    Symbology `json:"symbology" yaml:"symbology"`
	DisplayValue bool      `json:"displayValue,omitempty" yaml:"displayValue,omitempty"`
}

// Image draws a raster or SVG source. Src is a file path, a data URI or raw base64.
type Image struct {
	Src       string `json:"src" yaml:"src"`
	Fit       string `json:"fit,omitempty" yaml:"fit,omitempty"` // contain, cover, stretch
	Grayscale bool   `json:"grayscale,omitempty" yaml:"grayscale,omitempty"`
}

type Shape struct {
	Kind        string    `json:"kind" yaml:"kind"` // rect, ellipse, line
	Stroke      string    `json:"stroke,omitempty" yaml:"stroke,omitempty"`
	Fill        string    `json:"fill,omitempty" yaml:"fill,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty"` // CSS px
	Radius      float64   `json:"radius,omitempty" yaml:"radius,omitempty"`           // CSS px
	Dash        []float64 `json:"dash,omitempty" yaml:"dash,omitempty"`
}

// Group owns its children exclusively.
type Group struct {
	Children []Element `json:"children" yaml:"children"`
}

// Binding returns the element's literal content and bound field. Only text and
// barcode elements are bindable.
func (e *Element) Binding() (content, field string, ok bool) {
	switch e.Type {
	case TypeText:
		if e.Text != nil {
			return e.Text.Content, e.Text.DataField, true
		}
	case TypeBarcode:
		if e.Barcode != nil {
			return e.Barcode.Content, e.Barcode.DataField, true
		}
	}
	return "", "", false
}

// Children returns the group's children, or nil for leaf elements.
func (e *Element) Children() []Element {
	if e.Type == TypeGroup && e.Group != nil {
		return e.Group.Children
	}
	return nil
}

// Walk visits every element depth-first in paint order. Returning false from fn
// stops the walk.
func Walk(elements []Element, fn func(el *Element, parent *Element) bool) bool {
	return walk(elements, nil, fn)
}

func walk(elements []Element, parent *Element, fn func(*Element, *Element) bool) bool {
	for i := range elements {
		el := &elements[i]
		if !fn(el, parent) {
			return false
		}
		if el.Type == TypeGroup && el.Group != nil {
			if !walk(el.Group.Children, el, fn) {
				return false
			}
		}
	}
	return true
}
