package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/database"
)

type Handler struct {
	Service *Service
	MCP     http.Handler
}

func NewHandler(s *Service, mcp http.Handler) *Handler {
	return &Handler{Service: s, MCP: mcp}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	if h.MCP != nil {
		r.Any("/mcp", gin.WrapH(h.MCP))
	}
	api := r.Group("/api")
	{
		api.POST("/research", h.createJob)
		api.GET("/research", h.listJobs)
		api.GET("/research/:id", h.getJob)
		api.GET("/research/:id/logs", h.getJobLogs)
		api.GET("/research/:id/report", h.getReport)
	}
}

func (h *Handler) createJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.Service.CreateJob(c.Request.Context(), req)
	if errors.Is(err, ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) listJobs(c *gin.Context) {
	jobs, err := h.Service.ListJobs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []database.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) getJob(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) getJobLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return
	}

	logs, err := h.Service.GetJobLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []database.LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) getReport(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}
	if job.Report == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "report not ready", "status": job.Status})
		return
	}

	if c.Query("format") != "html" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(*job.Report))
		return
	}

	page, err := RenderHTML(job.Topic, *job.Report)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (h *Handler) lookup(c *gin.Context) (*database.Job, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return nil, false
	}

	job, err := h.Service.GetJob(c.Request.Context(), id)
	if errors.Is(err, database.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return job, true
}
