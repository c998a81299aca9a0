package export

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// PageOptions configures a print document.
type PageOptions struct {
	Paper        units.Size // inches
	MarginInches float64
	ZeroWaste    bool
	DPI          float64
	Progress     ProgressFunc
}

// Placement is a rendered label at its page position. Coordinates are inches
// from the top-left corner of the page.
type Placement struct {
	PNG   []byte
	X, Y  float64
	W, H  float64
	Label GeneratedLabel
}

// Page is one sheet of a print document.
type Page struct {
	Placements []Placement
}

// ExportPrintDocument renders every label and packs them onto pages. The
// template is validated first; a label that then does not fit the printable
// area is a ConfigError and nothing is rendered.
func (e *Exporter) ExportPrintDocument(ctx context.Context, tpl *labelformat.Template, rows []labelformat.DataRow, plan labelformat.QuantityPlan, opts PageOptions) ([]Page, Grid, error) {
	b, err := e.prepare(tpl, rows, plan)
	if err != nil {
		return nil, Grid{}, err
	}

	grid, err := Pack(opts.Paper, opts.MarginInches, units.Size{W: b.tpl.Width, H: b.tpl.Height}, opts.ZeroWaste)
	if err != nil {
		return nil, Grid{}, err
	}

	pngs, err := e.renderPNGs(ctx, b, opts.DPI, opts.Progress)
	if err != nil {
		return nil, Grid{}, err
	}

	pages := make([]Page, grid.Pages(len(b.labels)))
	for i, l := range b.labels {
		page, x, y := grid.Place(i)
		pages[page].Placements = append(pages[page].Placements, Placement{
			PNG:   pngs[i],
			X:     x,
			Y:     y,
			W:     grid.Label.W,
			H:     grid.Label.H,
			Label: l,
		})
	}
	log.Infof("packed %d labels of '%s' on %d pages (%d per page)", len(b.labels), b.tpl.Name, len(pages), grid.PerPage())
	return pages, grid, nil
}

// WritePDF writes pages as a PDF with one embedded PNG per label, positioned
// in millimetres. The document is built in memory and only written to w once
// complete. A document without pages is a ConfigError.
func WritePDF(w io.Writer, pages []Page, paper units.Size) error {
	if paper.W <= 0 || paper.H <= 0 {
		return configErrorf("page size must be positive, got %gx%g in", paper.W, paper.H)
	}
	if len(pages) == 0 {
		return configErrorf("no labels to print")
	}
	pageW, pageH := units.MMFromInches(paper.W), units.MMFromInches(paper.H)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P", // "L" would swap the custom size
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("label-engine", true)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	for p, page := range pages {
		pdf.AddPage()
		for i, pl := range page.Placements {
			name := fmt.Sprintf("p%d-l%d", p+1, i+1)
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(pl.PNG))
			pdf.ImageOptions(name,
				units.MMFromInches(pl.X), units.MMFromInches(pl.Y),
				units.MMFromInches(pl.W), units.MMFromInches(pl.H),
				false, opts, 0, "")
		}
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("failed to build page %d: %w", p+1, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("failed to build pdf: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return &IOError{Op: "write pdf", Err: err}
	}
	return nil
}
