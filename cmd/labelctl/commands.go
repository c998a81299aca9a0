package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	"github.com/thereceipt/label-engine/internal/binding"
	"github.com/thereceipt/label-engine/internal/dataset"
	"github.com/thereceipt/label-engine/internal/export"
	"github.com/thereceipt/label-engine/internal/fonts"
	"github.com/thereceipt/label-engine/internal/printer"
	"github.com/thereceipt/label-engine/internal/renderer"
	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// batchFlags are shared by the commands that render a whole dataset.
type batchFlags struct {
	data     string
	sheet    string
	quantity string
	dpi      float64
	workers  int
	fontsDir string
	assets   string
}

func (b *batchFlags) bind(cmd *cobra.Command, dpi float64) {
	f := cmd.Flags()
	f.StringVarP(&b.data, "data", "d", "", "CSV, TSV or XLSX dataset")
	f.StringVar(&b.sheet, "sheet", "", "XLSX sheet (default: first)")
	f.StringVarP(&b.quantity, "quantity", "q", "1", "copies per row: N, or column:<name>")
	f.Float64Var(&b.dpi, "dpi", dpi, "output resolution")
	f.IntVar(&b.workers, "workers", 0, "render workers (0 = one per CPU)")
	f.StringVar(&b.fontsDir, "fonts", "", "directory with additional .ttf fonts")
	f.StringVar(&b.assets, "assets", ".", "directory image files are read from")
}

func (b *batchFlags) renderer() *renderer.Renderer {
	var reg *fonts.Registry
	if b.fontsDir != "" {
		reg = fonts.NewRegistry(b.fontsDir)
	}
	return renderer.New(reg, renderer.WithAssetsDir(b.assets))
}

func (b *batchFlags) load(path string) (*labelformat.Template, []labelformat.DataRow, labelformat.QuantityPlan, error) {
	if err := units.CheckDPI(b.dpi, units.MaxDPI); err != nil {
		return nil, nil, labelformat.QuantityPlan{}, err
	}
	tpl, err := labelformat.ParseFile(path)
	if err != nil {
		return nil, nil, labelformat.QuantityPlan{}, err
	}
	plan, err := parseQuantity(b.quantity)
	if err != nil {
		return nil, nil, plan, err
	}
	rows, err := loadRows(b.data, b.sheet)
	if err != nil {
		return nil, nil, plan, err
	}
	return tpl, rows, plan, nil
}

// loadRows reads a dataset file. Without one a single empty row renders the
// template's sample values.
func loadRows(path, sheet string) ([]labelformat.DataRow, error) {
	if path == "" {
		return []labelformat.DataRow{nil}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var ds *labelformat.Dataset
	if sheet != "" {
		ds, err = dataset.ParseXLSX(f, sheet)
	} else {
		ds, err = dataset.Parse(filepath.Base(path), f)
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("loaded %d rows with columns %s", len(ds.Rows), strings.Join(ds.Columns, ", "))
	return ds.Rows, nil
}

func parseQuantity(s string) (labelformat.QuantityPlan, error) {
	if col, ok := strings.CutPrefix(s, "column:"); ok && col != "" {
		return labelformat.QuantityPlan{Type: labelformat.QuantityColumn, Column: col}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return labelformat.QuantityPlan{}, fmt.Errorf("invalid quantity '%s' (use N or column:<name>)", s)
	}
	return labelformat.QuantityPlan{Type: labelformat.QuantityFixed, Fixed: n}, nil
}

func progressPrinter(verb string) export.ProgressFunc {
	return func(done, total int) {
		fmt.Fprintf(os.Stderr, "\r%s %d/%d", verb, done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func validateCmd() *cobra.Command {
	var data, sheet string
	cmd := &cobra.Command{
		Use:   "validate <template>",
		Short: "Check a template and, optionally, its bindings against a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, err := labelformat.ParseFile(args[0])
			if err == nil && data != "" {
				var rows []labelformat.DataRow
				if rows, err = loadRows(data, sheet); err == nil {
					err = export.Check(tpl, rows)
				}
			}

			var verr *labelformat.ValidationError
			if errors.As(err, &verr) {
				fmt.Println(errorStyle.Render(fmt.Sprintf("✗ %s: %d issues", args[0], len(verr.Issues))))
				for _, issue := range verr.Issues {
					fmt.Println("  " + warningStyle.Render("•") + " " + issue)
				}
				return errors.New("template is invalid")
			}
			if err != nil {
				return err
			}

			count := 0
			labelformat.Walk(tpl.Elements, func(*labelformat.Element, *labelformat.Element) bool {
				count++
				return true
			})
			fmt.Println(successStyle.Render("✓ " + args[0]))
			fmt.Println(field("size", fmt.Sprintf("%g × %g in", tpl.Width, tpl.Height)))
			fmt.Println(field("layout", tpl.Mode()))
			fmt.Println(field("elements", count))
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "dataset to check bindings against")
	cmd.Flags().StringVar(&sheet, "sheet", "", "XLSX sheet (default: first)")
	return cmd
}

func renderCmd() *cobra.Command {
	var b batchFlags
	var out, naming string
	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render every label to PNG files or a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, rows, plan, err := b.load(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := interruptible()
			defer cancel()

			entries, err := export.New(b.renderer(), b.workers).ExportArchive(ctx, tpl, rows, plan, export.ArchiveOptions{
				DPI:      b.dpi,
				Naming:   export.Naming(naming),
				Progress: progressPrinter("rendered"),
			})
			if err != nil {
				return err
			}

			if strings.EqualFold(filepath.Ext(out), ".zip") {
				var buf bytes.Buffer
				if err := export.WriteZip(&buf, entries); err != nil {
					return err
				}
				if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
					return &export.IOError{Op: "write " + out, Err: err}
				}
			} else {
				if err := writeDir(out, entries); err != nil {
					return err
				}
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ %d labels", len(entries))) + mutedStyle.Render(" → "+out))
			return nil
		},
	}
	b.bind(cmd, 300)
	cmd.Flags().StringVarP(&out, "out", "o", "labels.zip", "output directory, or a .zip file")
	cmd.Flags().StringVar(&naming, "naming", string(export.NamingRowCopy), "file naming: row-copy or sequential")
	return cmd
}

func writeDir(dir string, entries []export.ArchiveEntry) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &export.IOError{Op: "create " + dir, Err: err}
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name)
		if err := os.WriteFile(path, entry.PNG, 0644); err != nil {
			return &export.IOError{Op: "write " + path, Err: err}
		}
	}
	return nil
}

func previewCmd() *cobra.Command {
	var b batchFlags
	var out string
	var row int
	var svg bool
	cmd := &cobra.Command{
		Use:   "preview <template>",
		Short: "Render a single row, or its layout boxes as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, rows, _, err := b.load(args[0])
			if err != nil {
				return err
			}
			if row < 0 || row >= len(rows) {
				return fmt.Errorf("row must be between 0 and %d", len(rows)-1)
			}
			if err := export.Check(tpl, rows); err != nil {
				return err
			}

			var data []byte
			if svg {
				tree, err := b.renderer().Layout(tpl, rows[row], binding.ForTemplate(tpl))
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				tree.WriteSVG(&buf, b.dpi)
				data = buf.Bytes()
			} else {
				img, err := b.renderer().Render(tpl, rows[row], b.dpi)
				if err != nil {
					return err
				}
				if data, err = renderer.EncodePNG(img); err != nil {
					return err
				}
			}

			if out == "" {
				ext := ".png"
				if svg {
					ext = ".svg"
				}
				out = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + ext
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("✓ ") + out)
			return nil
		},
	}
	b.bind(cmd, 96)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: <template>.png)")
	cmd.Flags().IntVar(&row, "row", 0, "dataset row to preview, zero-based")
	cmd.Flags().BoolVar(&svg, "svg", false, "write the resolved layout boxes as SVG")
	return cmd
}

// pageFlags configure sheet packing.
type pageFlags struct {
	paper     string
	margin    float64
	zeroWaste bool
}

func (p *pageFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.paper, "paper", "letter", "paper: "+strings.Join(export.PaperNames(), ", ")+" or WxH inches")
	f.Float64Var(&p.margin, "margin", 0.5, "page margin in inches")
	f.BoolVar(&p.zeroWaste, "zero-waste", false, "spread labels evenly over the page")
}

func gridCmd() *cobra.Command {
	var p pageFlags
	var label string
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Show how many labels fit on a page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paper, err := export.ParsePaper(p.paper)
			if err != nil {
				return err
			}
			size, err := export.ParsePaper(label)
			if err != nil {
				return fmt.Errorf("invalid label size '%s'", label)
			}
			grid, err := export.Pack(paper, p.margin, size, p.zeroWaste)
			if err != nil {
				return err
			}
			printGrid(paper, size, grid)
			return nil
		},
	}
	p.bind(cmd)
	cmd.Flags().StringVar(&label, "label", "2x1", "label size WxH in inches")
	return cmd
}

func printGrid(paper, label units.Size, g export.Grid) {
	lines := []string{
		headerStyle.Render("page layout"),
		field("paper", fmt.Sprintf("%g × %g in", paper.W, paper.H)),
		field("label", fmt.Sprintf("%g × %g in", label.W, label.H)),
		field("grid", fmt.Sprintf("%d × %d", g.PerRow, g.PerCol)),
		field("per page", g.PerPage()),
		field("origin", fmt.Sprintf("%.3f, %.3f in", g.OriginX, g.OriginY)),
		field("step", fmt.Sprintf("%.3f, %.3f in", g.StepX, g.StepY)),
	}
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

func pdfCmd() *cobra.Command {
	var b batchFlags
	var p pageFlags
	var out string
	cmd := &cobra.Command{
		Use:   "pdf <template>",
		Short: "Pack every label onto printable pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, rows, plan, err := b.load(args[0])
			if err != nil {
				return err
			}
			paper, err := export.ParsePaper(p.paper)
			if err != nil {
				return err
			}
			ctx, cancel := interruptible()
			defer cancel()

			pages, grid, err := export.New(b.renderer(), b.workers).ExportPrintDocument(ctx, tpl, rows, plan, export.PageOptions{
				Paper:        paper,
				MarginInches: p.margin,
				ZeroWaste:    p.zeroWaste,
				DPI:          b.dpi,
				Progress:     progressPrinter("rendered"),
			})
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return &export.IOError{Op: "create " + out, Err: err}
			}
			defer f.Close()
			if err := export.WritePDF(f, pages, paper); err != nil {
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ %d pages, %d per page", len(pages), grid.PerPage())) + mutedStyle.Render(" → "+out))
			return nil
		},
	}
	b.bind(cmd, 300)
	p.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "labels.pdf", "output PDF")
	return cmd
}

func printCmd() *cobra.Command {
	var b batchFlags
	var target printer.Target
	cmd := &cobra.Command{
		Use:   "print <template>",
		Short: "Send every label to an ESC/POS printer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, rows, plan, err := b.load(args[0])
			if err != nil {
				return err
			}
			if target.Name == "" {
				target.Name = target.Address
			}
			m, err := printer.NewManager([]printer.Target{target})
			if err != nil {
				return err
			}
			ctx, cancel := interruptible()
			defer cancel()

			imgs, err := export.New(b.renderer(), b.workers).ExportImages(ctx, tpl, rows, plan, b.dpi, progressPrinter("rendered"))
			if err != nil {
				return err
			}
			if err := m.Print(ctx, target.Name, imgs, progressPrinter("printed")); err != nil {
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ printed %d labels on %s", len(imgs), target.Name)))
			return nil
		},
	}
	b.bind(cmd, 203)
	f := cmd.Flags()
	f.StringVarP(&target.Address, "printer", "p", "", "printer address: host[:port] or serial device")
	f.StringVar(&target.Type, "type", printer.TypeNetwork, "connection type: network or serial")
	f.IntVar(&target.Baud, "baud", 0, "serial baud rate (default 9600)")
	f.BoolVar(&target.Cut, "cut", false, "cut after each label")
	cmd.MarkFlagRequired("printer")
	return cmd
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports that may have a printer attached",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ports := printer.SerialPorts()
			if len(ports) == 0 {
				fmt.Println(mutedStyle.Render("no serial ports found"))
				return
			}
			for _, p := range ports {
				fmt.Println(p)
			}
		},
	}
}
