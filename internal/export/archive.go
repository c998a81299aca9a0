package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"

	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// Naming selects archive file names.
type Naming string

const (
	NamingRowCopy    Naming = "row-copy"   // label_{row}_{copy}.png
	NamingSequential Naming = "sequential" // label-{n}.png
)

// FileName returns the archive name of l. Indices in names are 1-based.
func (n Naming) FileName(l GeneratedLabel) string {
	if n == NamingSequential {
		return fmt.Sprintf("label-%d.png", l.Sequence)
	}
	return fmt.Sprintf("label_%d_%d.png", l.RowIndex+1, l.CopyIndex+1)
}

// ArchiveEntry is one rendered label file.
type ArchiveEntry struct {
	Name  string
	PNG   []byte
	Label GeneratedLabel
}

// ArchiveOptions configures ExportArchive.
type ArchiveOptions struct {
	DPI      float64
	Naming   Naming
	Progress ProgressFunc
}

// ExportArchive renders one PNG per label. Either every label is returned or
// none is.
func (e *Exporter) ExportArchive(ctx context.Context, tpl *labelformat.Template, rows []labelformat.DataRow, plan labelformat.QuantityPlan, opts ArchiveOptions) ([]ArchiveEntry, error) {
	b, err := e.prepare(tpl, rows, plan)
	if err != nil {
		return nil, err
	}

	pngs, err := e.renderPNGs(ctx, b, opts.DPI, opts.Progress)
	if err != nil {
		return nil, err
	}

	entries := make([]ArchiveEntry, len(b.labels))
	for i, l := range b.labels {
		entries[i] = ArchiveEntry{Name: opts.Naming.FileName(l), PNG: pngs[i], Label: l}
	}
	log.Infof("exported %d labels of '%s'", len(entries), b.tpl.Name)
	return entries, nil
}

// WriteZip writes entries as a zip archive. PNG data is stored without
// compression.
func WriteZip(w io.Writer, entries []ArchiveEntry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: entry.Name, Method: zip.Store})
		if err != nil {
			return &IOError{Op: "add " + entry.Name, Err: err}
		}
		if _, err := f.Write(entry.PNG); err != nil {
			return &IOError{Op: "write " + entry.Name, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return &IOError{Op: "finish archive", Err: err}
	}
	return nil
}
