// Package binding resolves element content from data rows
package binding

import (
	"fmt"

	"github.com/flanksource/commons/logger"

	"github.com/thereceipt/label-engine/internal/barcode"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

var log = logger.GetLogger("binding")

// Warning describes a bound element that had no data to show. Resolution
// continues with a placeholder.
type Warning struct {
	ElementID string
	Column    string
	Reason    string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("element '%s' bound to '%s': %s", w.ElementID, w.Column, w.Reason)
}

// Resolver maps elements to display values. It holds no per-row state and is
// safe to share between goroutines.
type Resolver struct {
	mapping labelformat.ColumnMapping
	quiet   bool
}

// New creates a resolver. mapping overrides each element's dataField.
func New(mapping labelformat.ColumnMapping) *Resolver {
	return &Resolver{mapping: mapping}
}

// ForTemplate creates a resolver using the template's column mapping.
func ForTemplate(t *labelformat.Template) *Resolver {
	return New(t.Columns)
}

// Quiet returns a resolver with the same mapping that does not log
// warnings. Batch export resolves each row once for logging and then renders
// every copy quietly.
func (r *Resolver) Quiet() *Resolver {
	return &Resolver{mapping: r.mapping, quiet: true}
}

// Column returns the column el is bound to, or "".
func (r *Resolver) Column(el *labelformat.Element) string {
	if r != nil {
		if col, ok := r.mapping[el.ID]; ok && col != "" {
			return col
		}
	}
	_, field, _ := el.Binding()
	return field
}

// Resolve returns the text for el. A literal is returned as is. A bound column
// returns the row's value with the element's prefix and suffix; when the row
// is nil or the cell is missing or blank, the column name is shown instead.
func (r *Resolver) Resolve(el *labelformat.Element, row labelformat.DataRow) string {
	value, warn := r.ResolveDetailed(el, row)
	if warn != nil && !r.quiet {
		if row == nil {
			log.Debugf("%v", warn)
		} else {
			log.Warnf("%v", warn)
		}
	}
	return value
}

// ResolveDetailed is Resolve without logging.
func (r *Resolver) ResolveDetailed(el *labelformat.Element, row labelformat.DataRow) (string, *Warning) {
	content, _, ok := el.Binding()
	if !ok {
		return "", nil
	}
	col := r.Column(el)
	if col == "" {
		return content, nil
	}

	if row == nil {
		return col, &Warning{ElementID: el.ID, Column: col, Reason: "no data row"}
	}
	if _, found := row.Get(col); !found {
		return col, &Warning{ElementID: el.ID, Column: col, Reason: "column missing"}
	}
	value, ok := row.String(col)
	if !ok {
		return col, &Warning{ElementID: el.ID, Column: col, Reason: "empty cell"}
	}

	if el.Type == labelformat.TypeText && el.Text != nil {
		return formatValue(value, el.Text.Prefix, el.Text.Suffix), nil
	}
	return value, nil
}

// ResolveBarcode returns the value to encode for a barcode element. Literals
// win; a bound column without data falls back to a sample value for the
// symbology so that previews always show a symbol.
func (r *Resolver) ResolveBarcode(el *labelformat.Element, row labelformat.DataRow) string {
	if el.Barcode == nil {
		return ""
	}
	sym := el.Barcode.Symbology
	col := r.Column(el)
	if col == "" {
		if el.Barcode.Content != "" {
			return el.Barcode.Content
		}
		return barcode.SampleValue(sym)
	}

	value, warn := r.ResolveDetailed(el, row)
	if warn != nil {
		if row != nil && !r.quiet {
			log.Warnf("%v", warn)
		}
		return barcode.SampleValue(sym)
	}
	return value
}

// Values resolves every bindable element of t for row, keyed by element id.
func (r *Resolver) Values(t *labelformat.Template, row labelformat.DataRow) map[string]string {
	values := make(map[string]string)
	labelformat.Walk(t.Elements, func(el *labelformat.Element, _ *labelformat.Element) bool {
		switch el.Type {
		case labelformat.TypeText:
			values[el.ID] = r.Resolve(el, row)
		case labelformat.TypeBarcode:
			values[el.ID] = r.ResolveBarcode(el, row)
		}
		return true
	})
	return values
}

func formatValue(value string, prefix, suffix string) string {
	return fmt.Sprintf("%s%s%s", prefix, value, suffix)
}
