package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamcommerce/product-update-service/internal/update"
	"github.com/streamcommerce/product-update-service/internal/update/dto"
	"github.com/streamcommerce/product-update-service/internal/update/jobs"
	"github.com/streamcommerce/product-update-service/pkg/logger"
)

type bulkUpdateRequest struct {
	Products []dto.ProductUpdateItem `json:"products" binding:"required,dive"`
}

// JobStore is what the handler needs from the async job backend.
type JobStore interface {
	Put(ctx context.Context, job *jobs.Job) error
	Get(ctx context.Context, id string) (*jobs.Job, error)
}

type UpdateHandler struct {
	uc     update.UseCase
	jobs   JobStore
	logger logger.ZapLogger
}

func NewUpdateHandler(uc update.UseCase, jobStore JobStore, log logger.ZapLogger) *UpdateHandler {
	return &UpdateHandler{
		uc:     uc,
		jobs:   jobStore,
		logger: log,
	}
}

func (h *UpdateHandler) RegisterRoutes(r *gin.Engine, authMW gin.HandlerFunc) {
	api := r.Group("/api/v1", authMW)
	api.POST("/products/bulk-update", h.BulkUpdate)
	api.GET("/products/bulk-update/jobs/:id", h.JobStatus)
}

// BulkUpdate handles POST /api/v1/products/bulk-update. With ?async=true the
// batch is validated up front and processed in the background under a job id.
func (h *UpdateHandler) BulkUpdate(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.ToLower(strings.TrimSpace(c.Query("async"))) == "true" {
		h.handleAsync(c, req.Products)
		return
	}

	result, err := h.uc.BatchUpdate(c.Request.Context(), req.Products)
	if err != nil {
		h.writeBatchError(c, err)
		return
	}

	h.writeResult(c, result)
}

// JobStatus handles GET /api/v1/products/bulk-update/jobs/:id.
func (h *UpdateHandler) JobStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job ID required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	job, err := h.jobs.Get(ctx, id)
	if err != nil {
		h.logger.Error("failed to load job", zap.String("job_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve job status"})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *UpdateHandler) handleAsync(c *gin.Context, items []dto.ProductUpdateItem) {
	// Size limits are enforced before accepting the job so the caller gets
	// an immediate 400 instead of a failed job.
	if err := h.uc.ValidateBatch(items); err != nil {
		h.writeBatchError(c, err)
		return
	}

	job := &jobs.Job{
		ID:        uuid.New().String(),
		Status:    jobs.StatusPending,
		ItemCount: len(items),
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.jobs.Put(ctx, job); err != nil {
		h.logger.Error("failed to store job", zap.String("job_id", job.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to schedule job"})
		return
	}

	// Detached from the request context: the batch keeps running after the
	// 202 is written.
	go h.runJob(context.Background(), job, items)

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *UpdateHandler) runJob(ctx context.Context, job *jobs.Job, items []dto.ProductUpdateItem) {
	result, err := h.uc.BatchUpdate(ctx, items)

	now := time.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = jobs.StatusFailed
		job.Error = err.Error()
	} else {
		success := result.Success()
		job.Status = jobs.StatusCompleted
		job.Success = &success
		if !success {
			job.Errors = result.Errors
		}
	}

	if err := h.jobs.Put(ctx, job); err != nil {
		h.logger.Error("failed to store job result", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (h *UpdateHandler) writeResult(c *gin.Context, result *dto.BatchUpdateResult) {
	if result.Success() {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": false, "errors": result.Errors})
}

func (h *UpdateHandler) writeBatchError(c *gin.Context, err error) {
	var limitErr *update.BatchLimitError
	switch {
	case errors.Is(err, update.ErrEmptyBatch), errors.As(err, &limitErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, update.ErrSKUAttributeMissing):
		h.logger.Error("bulk update aborted", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		h.logger.Error("bulk update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
