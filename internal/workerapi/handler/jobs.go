package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gasopt/optimizer/internal/model/dto"
	"github.com/gasopt/optimizer/internal/pkg/response"
	"github.com/gasopt/optimizer/internal/worker"
)

// JobsHandler serves the worker's HTTP surface (spec.md §6.2).
type JobsHandler struct {
	store *worker.JobStore
}

func NewJobsHandler(store *worker.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// Health handles GET /jobs/health.
func (h *JobsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Analyze handles POST /jobs/analyze.
func (h *JobsHandler) Analyze(c *gin.Context) {
	var req dto.WorkerAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		response.BadRequest(c, "code must not be empty")
		return
	}

	job, err := h.store.Create(req.Code)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	c.JSON(http.StatusAccepted, dto.WorkerAnalyzeResponse{JobID: job.ID, Status: string(job.Status)})
}

// Get handles GET /jobs/{id}.
func (h *JobsHandler) Get(c *gin.Context) {
	view, err := h.store.Get(c.Param("id"))
	if err != nil {
		response.NotFound(c, "job not found")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Cancel handles POST /jobs/{id}/cancel.
func (h *JobsHandler) Cancel(c *gin.Context) {
	view, err := h.store.Cancel(c.Param("id"))
	if err != nil {
		if errors.Is(err, worker.ErrJobNotFound) {
			response.NotFound(c, "job not found")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, view)
}

// Retry handles POST /jobs/{id}/retry.
func (h *JobsHandler) Retry(c *gin.Context) {
	job, err := h.store.Retry(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrJobNotFound):
			response.NotFound(c, "job not found")
		case errors.Is(err, worker.ErrNotRetryable):
			response.Conflict(c, "job is not retryable")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.WorkerRetryResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		RetryOf: job.RetryOf,
	})
}
