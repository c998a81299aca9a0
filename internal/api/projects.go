package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thereceipt/label-engine/internal/binding"
	"github.com/thereceipt/label-engine/internal/dataset"
	"github.com/thereceipt/label-engine/internal/renderer"
	"github.com/thereceipt/label-engine/internal/units"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// minElementSize is the smallest box a resize handle can produce, in inches.
const minElementSize = 0.05

func (s *Server) handleCreateProject(c *gin.Context) {
	var req struct {
		Name     string                `json:"name" binding:"required"`
		Width    float64               `json:"width"`
		Height   float64               `json:"height"`
		Template *labelformat.Template `json:"template"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	tpl := req.Template
	if tpl == nil {
		if req.Width == 0 && req.Height == 0 {
			req.Width, req.Height = 2, 1
		}
		tpl = labelformat.New(req.Name, req.Width, req.Height)
	}
	if err := labelformat.Validate(tpl); err != nil {
		writeError(c, err)
		return
	}

	p, err := s.store.CreateProject(req.Name, tpl)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.store.ListProjects()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) handleGetProject(c *gin.Context) {
	p, err := s.store.GetProject(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.store.DeleteProject(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handlePutTemplate replaces the template. YAML bodies are accepted when sent
// with a yaml content type.
func (s *Server) handlePutTemplate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}

	var tpl *labelformat.Template
	if strings.Contains(c.ContentType(), "yaml") {
		tpl, err = labelformat.ParseYAML(body)
	} else {
		tpl, err = labelformat.Parse(body)
	}
	if err != nil {
		writeError(c, asClientError(err))
		return
	}

	updated, err := s.store.UpdateTemplate(c.Param("id"), func(t *labelformat.Template) error {
		*t = *tpl
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleUpdateBox(c *gin.Context) {
	var req struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var applied units.Rect
	_, err := s.store.UpdateTemplate(c.Param("id"), func(t *labelformat.Template) error {
		var err error
		applied, err = t.UpdateElementBox(c.Param("eid"), units.Rect{X: req.X, Y: req.Y, W: req.Width, H: req.Height})
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"x": applied.X, "y": applied.Y, "width": applied.W, "height": applied.H})
}

func (s *Server) handleResize(c *gin.Context) {
	var req struct {
		Handle labelformat.Handle `json:"handle" binding:"required"`
		DX     float64            `json:"dx"`
		DY     float64            `json:"dy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var applied units.Rect
	_, err := s.store.UpdateTemplate(c.Param("id"), func(t *labelformat.Template) error {
		var err error
		applied, err = t.ResizeFromHandle(c.Param("eid"), req.Handle, req.DX, req.DY, minElementSize)
		return err
	})
	if err != nil {
		writeError(c, asClientError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"x": applied.X, "y": applied.Y, "width": applied.W, "height": applied.H})
}

func (s *Server) handleUploadDataset(c *gin.Context) {
	if s.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	name := filepath.Base(fh.Filename)
	ds, err := dataset.Parse(name, f)
	if err != nil {
		badRequest(c, err)
		return
	}

	info, err := s.store.PutDataset(c.Param("id"), name, ds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleSetQuantity(c *gin.Context) {
	var plan labelformat.QuantityPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		badRequest(c, err)
		return
	}
	switch plan.Type {
	case labelformat.QuantityFixed, labelformat.QuantityManual:
	case labelformat.QuantityColumn:
		if plan.Column == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "column is required for column quantities"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown quantity type '%s'", plan.Type)})
		return
	}

	if err := s.store.SetQuantity(c.Param("id"), plan); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// handlePreview renders one row. Without a dataset the template is drawn
// with its sample values.
func (s *Server) handlePreview(c *gin.Context) {
	p, err := s.store.GetProject(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	row, err := s.previewRow(c)
	if err != nil {
		writeError(c, err)
		return
	}
	dpi, err := s.dpiQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := labelformat.Validate(p.Template); err != nil {
		writeError(c, err)
		return
	}

	img, err := s.renderer.Render(p.Template, row, dpi)
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := renderer.EncodePNG(img)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) handleLayoutSVG(c *gin.Context) {
	p, err := s.store.GetProject(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	row, err := s.previewRow(c)
	if err != nil {
		writeError(c, err)
		return
	}
	dpi, err := s.dpiQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := labelformat.Validate(p.Template); err != nil {
		writeError(c, err)
		return
	}
	tree, err := s.renderer.Layout(p.Template, row, binding.ForTemplate(p.Template))
	if err != nil {
		writeError(c, err)
		return
	}
	var buf bytes.Buffer
	tree.WriteSVG(&buf, dpi)
	c.Data(http.StatusOK, "image/svg+xml", buf.Bytes())
}

// previewRow returns the row selected by ?row=, zero-based. A project without
// a dataset previews an empty row.
func (s *Server) previewRow(c *gin.Context) (labelformat.DataRow, error) {
	ds, err := s.store.GetDataset(c.Param("id"))
	if err != nil {
		return nil, err
	}
	if len(ds.Rows) == 0 {
		return nil, nil
	}
	idx, err := strconv.Atoi(c.DefaultQuery("row", "0"))
	if err != nil || idx < 0 || idx >= len(ds.Rows) {
		return nil, &clientError{fmt.Errorf("row must be between 0 and %d", len(ds.Rows)-1)}
	}
	return ds.Rows[idx], nil
}

func floatQuery(c *gin.Context, key string, def float64) (float64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !(f > 0) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a positive number", key)
	}
	return f, nil
}

// dpiQuery reads ?dpi= bounded by the configured maximum.
func (s *Server) dpiQuery(c *gin.Context) (float64, error) {
	dpi, err := s.dpiQuery(c)
	if err != nil {
		return 0, err
	}
	return dpi, units.CheckDPI(dpi, s.opts.MaxDPI)
}
