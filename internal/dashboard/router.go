package dashboard

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hakim/scandash/internal/metrics"
	"github.com/hakim/scandash/internal/pipeline"
	"github.com/hakim/scandash/internal/registry"
)

// StartRequest is the body of POST /api/scans.
type StartRequest struct {
	URL string `json:"url" binding:"required"`
}

// SelectFindingRequest is the body of PUT /api/view/finding.
type SelectFindingRequest struct {
	Index *int `json:"index" binding:"required"`
}

type handler struct {
	svc *Service
	log *slog.Logger
}

// NewRouter builds the HTTP API over svc. rec may be nil, in which case
// /metrics is not mounted.
func NewRouter(svc *Service, rec *metrics.Recorder, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, log: logger}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if rec != nil {
		router.GET("/metrics", gin.WrapH(rec.Handler()))
	}

	api := router.Group("/api")
	api.POST("/scans", h.StartScan)
	api.GET("/scans", h.ListScans)
	api.GET("/scans/:id", h.GetScan)
	api.POST("/scans/:id/select", h.SelectHistorical)
	api.GET("/view", h.GetView)
	api.PUT("/view/finding", h.SelectFinding)
	api.DELETE("/view/finding", h.ClearSelectedFinding)
	api.DELETE("/live", h.StopLive)

	return router
}

func (h *handler) StartScan(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.svc.StartScan(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scan_id": id, "message": "Scan started"})
}

func (h *handler) ListScans(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.JSON(http.StatusOK, h.svc.Scans())
		return
	}
	scans, err := h.svc.ScansFor(target)
	if err != nil {
		h.log.Error("Listing scans failed", "url", target, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list scans"})
		return
	}
	c.JSON(http.StatusOK, scans)
}

func (h *handler) GetScan(c *gin.Context) {
	scan, err := h.svc.Scan(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Scan not found"})
		return
	}
	c.JSON(http.StatusOK, scan)
}

func (h *handler) SelectHistorical(c *gin.Context) {
	if _, err := h.svc.SelectHistorical(c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Scan not found"})
		return
	}
	c.JSON(http.StatusOK, h.svc.View())
}

func (h *handler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.View())
}

func (h *handler) SelectFinding(c *gin.Context) {
	var req SelectFindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := h.svc.SelectFinding(*req.Index)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *handler) ClearSelectedFinding(c *gin.Context) {
	h.svc.ClearSelectedFinding()
	c.Status(http.StatusNoContent)
}

func (h *handler) StopLive(c *gin.Context) {
	h.svc.StopLive()
	c.Status(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidTarget), errors.Is(err, ErrFindingIndex):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrLaunchFailed):
		return http.StatusBadGateway
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoActiveFindings):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
