// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"errors"
	"net/http"

	"github.com/flanksource/commons/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereceipt/label-engine/internal/export"
	"github.com/thereceipt/label-engine/internal/jobs"
	"github.com/thereceipt/label-engine/internal/printer"
	"github.com/thereceipt/label-engine/internal/renderer"
	"github.com/thereceipt/label-engine/internal/store"
	"github.com/thereceipt/label-engine/pkg/labelformat"
)

// Options are the tunables the server takes from configuration.
type Options struct {
	PreviewDPI     float64
	PrintDPI       float64
	MaxDPI         float64
	MaxUploadBytes int64
}

// Server is the API server
type Server struct {
	router   *gin.Engine
	store    *store.Store
	renderer *renderer.Renderer
	exporter *export.Exporter
	jobs     *jobs.Queue
	printers *printer.Manager
	opts     Options
	upgrader websocket.Upgrader
}

// NewServer creates a new API server. printers may be nil when no printer is
// configured.
func NewServer(st *store.Store, r *renderer.Renderer, ex *export.Exporter, q *jobs.Queue, printers *printer.Manager, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), corsMiddleware())
	if opts.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = opts.MaxUploadBytes
	}

	s := &Server{
		router:   router,
		store:    st,
		renderer: r,
		exporter: ex,
		jobs:     q,
		printers: printers,
		opts:     opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	api.POST("/projects", s.handleCreateProject)
	api.GET("/projects", s.handleListProjects)
	api.GET("/projects/:id", s.handleGetProject)
	api.DELETE("/projects/:id", s.handleDeleteProject)
	api.PUT("/projects/:id/template", s.handlePutTemplate)
	api.PATCH("/projects/:id/elements/:eid/box", s.handleUpdateBox)
	api.POST("/projects/:id/elements/:eid/resize", s.handleResize)
	api.POST("/projects/:id/dataset", s.handleUploadDataset)
	api.PUT("/projects/:id/quantity", s.handleSetQuantity)
	api.GET("/projects/:id/preview.png", s.handlePreview)
	api.GET("/projects/:id/layout.svg", s.handleLayoutSVG)
	api.POST("/projects/:id/export", s.handleExport)
	api.POST("/projects/:id/print", s.handlePrint)

	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.DELETE("/jobs/:id", s.handleCancelJob)
	api.GET("/jobs/:id/result", s.handleJobResult)

	api.GET("/printers", s.handleListPrinters)
	api.GET("/papers", s.handleListPapers)

	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the API server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// writeError maps domain errors to status codes.
func writeError(c *gin.Context, err error) {
	var verr *labelformat.ValidationError
	var cerr *export.ConfigError
	var clerr *clientError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template", "issues": verr.Issues})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, labelformat.ErrElementNotFound), errors.Is(err, printer.ErrUnknownPrinter):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &clerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrNotFinished):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// clientError marks an error caused by the request itself.
type clientError struct{ err error }

func (e *clientError) Error() string { return e.err.Error() }
func (e *clientError) Unwrap() error { return e.err }

func asClientError(err error) error {
	return &clientError{err: err}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debugf("%s %s %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
