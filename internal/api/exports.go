package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/label-engine/internal/export"
	"github.com/thereceipt/label-engine/internal/jobs"
	"github.com/thereceipt/label-engine/internal/store"
	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

type exportRequest struct {
	Kind         jobs.Kind     `json:"kind" binding:"required"`
	DPI          float64       `json:"dpi"`
	Naming       export.Naming `json:"naming"`
	Paper        string        `json:"paper"`
	MarginInches *float64      `json:"marginInches"`
	ZeroWaste    bool          `json:"zeroWaste"`
}

// defaultMargin is the page margin used when a request does not set one.
const defaultMargin = 0.5

// handleExport validates the project and queues the export. Errors that would
// stop the export are reported here rather than by the job.
func (s *Server) handleExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.DPI == 0 {
		req.DPI = s.opts.PrintDPI
	}
	if err := units.CheckDPI(req.DPI, s.opts.MaxDPI); err != nil {
		badRequest(c, err)
		return
	}

	p, rows, err := s.snapshot(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := export.Check(p.Template, rows); err != nil {
		writeError(c, err)
		return
	}

	var run jobs.RunFunc
	switch req.Kind {
	case jobs.KindArchive:
		run = s.archiveJob(p.Template, rows, p.Quantity, req)
	case jobs.KindPDF:
		if req.Paper == "" {
			req.Paper = "letter"
		}
		paper, err := export.ParsePaper(req.Paper)
		if err != nil {
			writeError(c, err)
			return
		}
		margin := defaultMargin
		if req.MarginInches != nil {
			margin = *req.MarginInches
		}
		label := units.Size{W: p.Template.Width, H: p.Template.Height}
		if _, err := export.Pack(paper, margin, label, req.ZeroWaste); err != nil {
			writeError(c, err)
			return
		}
		run = s.pdfJob(p.Template, rows, p.Quantity, export.PageOptions{
			Paper:        paper,
			MarginInches: margin,
			ZeroWaste:    req.ZeroWaste,
			DPI:          req.DPI,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown export kind '%s'", req.Kind)})
		return
	}

	job := s.jobs.Submit(p.ID, req.Kind, run)
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) archiveJob(tpl *labelformat.Template, rows []labelformat.DataRow, plan labelformat.QuantityPlan, req exportRequest) jobs.RunFunc {
	return func(ctx context.Context, progress func(done, total int)) (*jobs.Result, error) {
		entries, err := s.exporter.ExportArchive(ctx, tpl, rows, plan, export.ArchiveOptions{
			DPI:      req.DPI,
			Naming:   req.Naming,
			Progress: progress,
		})
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := export.WriteZip(&buf, entries); err != nil {
			return nil, err
		}
		return &jobs.Result{Name: fileStem(tpl) + ".zip", ContentType: "application/zip", Data: buf.Bytes()}, nil
	}
}

func (s *Server) pdfJob(tpl *labelformat.Template, rows []labelformat.DataRow, plan labelformat.QuantityPlan, opts export.PageOptions) jobs.RunFunc {
	return func(ctx context.Context, progress func(done, total int)) (*jobs.Result, error) {
		opts.Progress = progress
		pages, _, err := s.exporter.ExportPrintDocument(ctx, tpl, rows, plan, opts)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := export.WritePDF(&buf, pages, opts.Paper); err != nil {
			return nil, err
		}
		return &jobs.Result{Name: fileStem(tpl) + ".pdf", ContentType: "application/pdf", Data: buf.Bytes()}, nil
	}
}

// handlePrint queues a job sending every label of the project to a printer.
func (s *Server) handlePrint(c *gin.Context) {
	var req struct {
		Printer string  `json:"printer" binding:"required"`
		DPI     float64 `json:"dpi"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "printer is required"})
		return
	}
	if s.printers == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no printers configured"})
		return
	}
	if !s.hasPrinter(req.Printer) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown printer '%s'", req.Printer)})
		return
	}
	if req.DPI == 0 {
		req.DPI = s.opts.PrintDPI
	}
	if err := units.CheckDPI(req.DPI, s.opts.MaxDPI); err != nil {
		badRequest(c, err)
		return
	}

	p, rows, err := s.snapshot(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := export.Check(p.Template, rows); err != nil {
		writeError(c, err)
		return
	}

	tpl, plan := p.Template, p.Quantity
	job := s.jobs.Submit(p.ID, jobs.KindPrint, func(ctx context.Context, progress func(done, total int)) (*jobs.Result, error) {
		imgs, err := s.exporter.ExportImages(ctx, tpl, rows, plan, req.DPI, progress)
		if err != nil {
			return nil, err
		}
		return nil, s.printers.Print(ctx, req.Printer, imgs, progress)
	})
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) hasPrinter(name string) bool {
	for _, t := range s.printers.List() {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.jobs.List()})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleCancelJob(c *gin.Context) {
	if err := s.jobs.Cancel(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleJobResult(c *gin.Context) {
	res, err := s.jobs.Result(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Name))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

func (s *Server) handleListPrinters(c *gin.Context) {
	if s.printers == nil {
		c.JSON(http.StatusOK, gin.H{"printers": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"printers": s.printers.List()})
}

func (s *Server) handleListPapers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"papers": export.Papers})
}

// snapshot loads the project and its rows. Both are private copies, so later
// edits to the project do not reach a queued job.
func (s *Server) snapshot(id string) (*store.Project, []labelformat.DataRow, error) {
	p, err := s.store.GetProject(id)
	if err != nil {
		return nil, nil, err
	}
	ds, err := s.store.GetDataset(id)
	if err != nil {
		return nil, nil, err
	}
	return p, ds.Rows, nil
}

func fileStem(tpl *labelformat.Template) string {
	name := strings.TrimSpace(filepath.Base(tpl.Name))
	if name == "" || name == "." || name == "/" {
		return "labels"
	}
	return name
}
