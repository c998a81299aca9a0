package export

import (
	"context"
	"fmt"
	"image"

	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"

	"github.com/thereceipt/label-engine/internal/binding"
	"github.com/thereceipt/label-engine/internal/renderer"
	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

var log = logger.GetLogger("export")

// Exporter renders batches. It is safe for concurrent use; each call works on
// its own snapshot of the template.
type Exporter struct {
	renderer *renderer.Renderer
	workers  int
}

// New creates an exporter rendering on up to workers goroutines; zero means
// one per CPU.
func New(r *renderer.Renderer, workers int) *Exporter {
	if r == nil {
		r = renderer.New(nil)
	}
	return &Exporter{renderer: r, workers: workers}
}

// batch is the validated, immutable input of one export.
type batch struct {
	tpl    *labelformat.Template
	labels []GeneratedLabel
}

// prepare validates tpl against rows and expands the plan over a private copy
// of the template, so edits made while the export runs are not observed.
func (e *Exporter) prepare(tpl *labelformat.Template, rows []labelformat.DataRow, plan labelformat.QuantityPlan) (*batch, error) {
	if err := Check(tpl, rows); err != nil {
		return nil, err
	}

	snapshot, err := tpl.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot template: %w", err)
	}
	labels := Expand(snapshot, rows, plan, binding.ForTemplate(snapshot))
	log.Debugf("export of '%s': %d rows, %d labels", snapshot.Name, len(rows), len(labels))
	return &batch{tpl: snapshot, labels: labels}, nil
}

// Check reports the validation errors that would stop an export of tpl over
// rows. Bindings are only checked when the rows have columns.
func Check(tpl *labelformat.Template, rows []labelformat.DataRow) error {
	if err := labelformat.Validate(tpl); err != nil {
		return err
	}
	columns := datasetColumns(rows)
	if len(columns) == 0 {
		return nil
	}
	return labelformat.ValidateBindings(tpl, columns)
}

// renderPNGs renders every label of b at dpi, in order. Labels are drawn from
// the values Expand resolved for them.
func (e *Exporter) renderPNGs(ctx context.Context, b *batch, dpi float64, progress ProgressFunc) ([][]byte, error) {
	dpi = units.EffectiveDPI(dpi)
	return RenderAll(ctx, b.labels, e.workers, func(l GeneratedLabel) ([]byte, error) {
		img, err := e.renderer.RenderValues(b.tpl, l.Values, dpi)
		if err != nil {
			return nil, err
		}
		return renderer.EncodePNG(img)
	}, progress)
}

// ExportImages renders every label to an image, in order. It is used where
// the images are consumed directly, such as printing.
func (e *Exporter) ExportImages(ctx context.Context, tpl *labelformat.Template, rows []labelformat.DataRow, plan labelformat.QuantityPlan, dpi float64, progress ProgressFunc) ([]image.Image, error) {
	b, err := e.prepare(tpl, rows, plan)
	if err != nil {
		return nil, err
	}
	dpi = units.EffectiveDPI(dpi)
	return RenderAll(ctx, b.labels, e.workers, func(l GeneratedLabel) (image.Image, error) {
		return e.renderer.RenderValues(b.tpl, l.Values, dpi)
	}, progress)
}

// datasetColumns is the union of the rows' columns in first-seen order.
func datasetColumns(rows []labelformat.DataRow) []string {
	var cols []string
	for _, row := range rows {
		cols = append(cols, row.Columns()...)
	}
	return lo.Uniq(cols)
}
