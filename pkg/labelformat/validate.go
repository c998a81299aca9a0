package labelformat

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ValidationError reports every problem found in a template. Rendering must not
// start while a template has validation issues.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid template: " + e.Issues[0]
	}
	return fmt.Sprintf("invalid template: %d issues: %s", len(e.Issues), strings.Join(e.Issues, "; "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Issues = append(e.Issues, fmt.Sprintf(format, args...))
}

func (e *ValidationError) errOrNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}

var (
	validSymbologies = []Symbology{EAN13, CODE128, CODE39, UPCA, ITF, QR}
	validDirections  = []Direction{"", DirectionRow, DirectionColumn}
	validJustify     = []Justify{"", JustifyStart, JustifyCenter, JustifyEnd, JustifySpaceBetween, JustifySpaceAround, JustifySpaceEvenly}
	validAlign       = []Align{"", AlignStart, AlignCenter, AlignEnd, AlignStretch}
	validTextAlign   = []string{"", "left", "center", "right"}
	validWeights     = []string{"", "normal", "bold"}
	validFits        = []string{"", "contain", "cover", "stretch"}
	validShapes      = []string{"rect", "ellipse", "line"}
)

// Validate validates a Template structure
func Validate(t *Template) error {
	verr := &ValidationError{}

	if t.Version == "" {
		verr.add("version is required")
	} else if t.Version != CurrentVersion {
		verr.add("unsupported version: %s (expected %s)", t.Version, CurrentVersion)
	}
	if t.Width <= 0 || t.Height <= 0 {
		verr.add("canvas size must be positive, got %gx%g", t.Width, t.Height)
	}
	if t.DPI < 0 {
		verr.add("dpi must not be negative")
	}
	if t.LayoutMode != "" && t.LayoutMode != LayoutAbsolute && t.LayoutMode != LayoutFlow {
		verr.add("invalid layoutMode '%s' (must be absolute or flow)", t.LayoutMode)
	}
	if t.Flow != nil {
		validateFlow(verr, "template", t.Flow)
	}

	ids := make(map[string]bool)
	for i := range t.Elements {
		validateElement(verr, t, &t.Elements[i], fmt.Sprintf("elements[%d]", i), ids)
	}

	for id := range t.Columns {
		if !ids[id] {
			verr.add("columnMapping: unknown element '%s'", id)
		}
	}

	return verr.errOrNil()
}

func validateElement(verr *ValidationError, t *Template, el *Element, path string, ids map[string]bool) {
	if el.ID == "" {
		verr.add("%s: id is required", path)
	} else {
		if ids[el.ID] {
			verr.add("%s: duplicate id '%s'", path, el.ID)
		}
		ids[el.ID] = true
		path = fmt.Sprintf("%s '%s'", path, el.ID)
	}

	b := el.Box
	if b.Width < 0 || b.Height < 0 {
		verr.add("%s: box size must not be negative", path)
	}
	if b.WidthPercent < 0 || b.WidthPercent > 100 || b.HeightPercent < 0 || b.HeightPercent > 100 {
		verr.add("%s: box percentages must be within 0-100", path)
	}
	if el.Flow != nil {
		validateFlow(verr, path, el.Flow)
	}

	payloads := lo.Count([]bool{el.Text != nil, el.Barcode != nil, el.Image != nil, el.Shape != nil, el.Group != nil}, true)
	if payloads > 1 {
		verr.add("%s: element carries more than one payload", path)
	}

	switch el.Type {
	case TypeText:
		if el.Text == nil {
			verr.add("%s: text element requires text properties", path)
			return
		}
		validateBinding(verr, t, el, path, el.Text.Content, el.Text.DataField, true)
		if !lo.Contains(validTextAlign, el.Text.Align) {
			verr.add("%s: invalid align '%s' (must be left, center, or right)", path, el.Text.Align)
		}
		if !lo.Contains(validWeights, el.Text.FontWeight) {
			verr.add("%s: invalid fontWeight '%s'", path, el.Text.FontWeight)
		}
		if el.Text.FontSize < 0 {
			verr.add("%s: fontSize must not be negative", path)
		}
	case TypeBarcode:
		if el.Barcode == nil {
			verr.add("%s: barcode element requires barcode properties", path)
			return
		}
		validateBinding(verr, t, el, path, el.Barcode.Content, el.Barcode.DataField, false)
		if !lo.Contains(validSymbologies, el.Barcode.Symbology) {
			verr.add("%s: invalid symbology '%s'", path, el.Barcode.Symbology)
		}
	case TypeImage:
		if el.Image == nil || el.Image.Src == "" {
			verr.add("%s: image element requires src", path)
			return
		}
		if !lo.Contains(validFits, el.Image.Fit) {
			verr.add("%s: invalid fit '%s'", path, el.Image.Fit)
		}
	case TypeShape:
		if el.Shape == nil {
			verr.add("%s: shape element requires shape properties", path)
			return
		}
		if !lo.Contains(validShapes, el.Shape.Kind) {
			verr.add("%s: invalid shape kind '%s' (must be rect, ellipse, or line)", path, el.Shape.Kind)
		}
		if el.Shape.StrokeWidth < 0 {
			verr.add("%s: strokeWidth must not be negative", path)
		}
	case TypeGroup:
		if el.Group == nil {
			// an empty group is legal and lays out to zero size
			return
		}
		for i := range el.Group.Children {
			validateElement(verr, t, &el.Group.Children[i], fmt.Sprintf("%s.children[%d]", path, i), ids)
		}
	case "":
		verr.add("%s: element type is required", path)
	default:
		verr.add("%s: unknown element type: %s", path, el.Type)
	}
}

// validateBinding enforces that content and a bound column are not both set.
// Text needs one of them; a barcode with neither previews a sample value.
func validateBinding(verr *ValidationError, t *Template, el *Element, path, content, field string, required bool) {
	if mapped, ok := t.Columns[el.ID]; ok && mapped != "" {
		field = mapped
	}
	switch {
	case content != "" && field != "":
		verr.add("%s: cannot have both content and dataField", path)
	case required && content == "" && field == "":
		verr.add("%s: must have content or dataField", path)
	}
}

func validateFlow(verr *ValidationError, path string, f *Flow) {
	if !lo.Contains(validDirections, f.Direction) {
		verr.add("%s: invalid flow direction '%s'", path, f.Direction)
	}
	if !lo.Contains(validJustify, f.Justify) {
		verr.add("%s: invalid justify '%s'", path, f.Justify)
	}
	if !lo.Contains(validAlign, f.Align) {
		verr.add("%s: invalid align '%s'", path, f.Align)
	}
	if f.GapPx < 0 || f.PaddingPx < 0 || f.MarginPx < 0 {
		verr.add("%s: gap, padding and margin must not be negative", path)
	}
}

// ValidateBindings checks every bound element against the dataset's columns.
func ValidateBindings(t *Template, columns []string) error {
	verr := &ValidationError{}
	known := lo.SliceToMap(columns, func(c string) (string, bool) { return c, true })

	Walk(t.Elements, func(el *Element, _ *Element) bool {
		_, field, ok := el.Binding()
		if !ok {
			return true
		}
		if mapped, ok := t.Columns[el.ID]; ok && mapped != "" {
			field = mapped
		}
		if field != "" && !known[field] {
			verr.add("element '%s' is bound to unknown column '%s'", el.ID, field)
		}
		return true
	})

	return verr.errOrNil()
}
