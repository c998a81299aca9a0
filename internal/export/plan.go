// Package export turns a template and its data rows into batches of label
// images, either as an archive of files or packed onto print pages.
package export

import (
	"github.com/samber/lo"

	"github.com/thereceipt/label-engine/internal/binding"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// GeneratedLabel is one (row, copy) pair of an export. It is created by
// Expand and never modified afterwards.
type GeneratedLabel struct {
	RowIndex  int
	CopyIndex int
	Sequence  int // 1-based position in the whole export
	Row       labelformat.DataRow
	Values    map[string]string // resolved text and barcode values by element id, drawn as is
	Template  *labelformat.Template
}

// Expand lists the labels of an export in output order: rows in order, the
// copies of a row contiguous. Rows whose quantity is zero or less are skipped.
// Values are resolved once per row; each copy gets its own map.
func Expand(tpl *labelformat.Template, rows []labelformat.DataRow, plan labelformat.QuantityPlan, res *binding.Resolver) []GeneratedLabel {
	if res == nil {
		res = binding.ForTemplate(tpl)
	}

	labels := make([]GeneratedLabel, 0, plan.Total(rows))
	seq := 0
	for i, row := range rows {
		copies := plan.For(i, row)
		if copies <= 0 {
			continue
		}
		values := res.Values(tpl, row)
		for c := 0; c < copies; c++ {
			seq++
			labels = append(labels, GeneratedLabel{
				RowIndex:  i,
				CopyIndex: c,
				Sequence:  seq,
				Row:       row,
				Values:    lo.Assign(values),
				Template:  tpl,
			})
		}
	}
	return labels
}
