package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"modelvault-backend/internal/models"
	"modelvault-backend/internal/queue"
	"modelvault-backend/internal/utils"
)

// JobHandler exposes the queue control plane: enqueue for the upload
// pipeline, dequeue/complete/fail for the worker fleet, retry and listing
// for operators.
type JobHandler struct {
	queue *queue.Service
}

func NewJobHandler(q *queue.Service) *JobHandler {
	return &JobHandler{queue: q}
}

// Enqueue creates (or dedups onto) a render job for a model version
func (h *JobHandler) Enqueue(c *gin.Context) {
	var input struct {
		ModelID            int64  `json:"modelId" binding:"required,gt=0"`
		ModelVersionID     int64  `json:"modelVersionId" binding:"required,gt=0"`
		ModelHash          string `json:"modelHash" binding:"required"`
		MaxAttempts        int    `json:"maxAttempts" binding:"omitempty,gte=1"`
		LockTimeoutMinutes int    `json:"lockTimeoutMinutes" binding:"omitempty,gte=1"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	job, err := h.queue.Enqueue(c.Request.Context(), queue.EnqueueParams{
		ModelID:            input.ModelID,
		ModelVersionID:     input.ModelVersionID,
		ModelHash:          input.ModelHash,
		MaxAttempts:        input.MaxAttempts,
		LockTimeoutMinutes: input.LockTimeoutMinutes,
	})
	if err != nil {
		h.sendQueueError(c, err)
		return
	}

	utils.SendCreated(c, "Job enqueued", job)
}

// Dequeue atomically claims the next pending job for a worker. Responds
// 204 when the queue is empty.
func (h *JobHandler) Dequeue(c *gin.Context) {
	var input struct {
		WorkerID string `json:"workerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.SendValidationError(c, err)
		return
	}
	c.Set("worker_id", input.WorkerID)

	job, err := h.queue.Dequeue(c.Request.Context(), input.WorkerID)
	if err != nil {
		h.sendQueueError(c, err)
		return
	}
	if job == nil {
		c.Status(http.StatusNoContent)
		return
	}

	utils.SendSuccess(c, "Job claimed", job)
}

// Complete reports a successful render
func (h *JobHandler) Complete(c *gin.Context) {
	jobID, ok := utils.ParseIDParam(c, "id")
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Invalid job ID", nil)
		return
	}

	var input struct {
		FileRef   string `json:"fileRef" binding:"required"`
		SizeBytes int64  `json:"sizeBytes" binding:"required,gt=0"`
		Width     int    `json:"width" binding:"required,gt=0"`
		Height    int    `json:"height" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	err := h.queue.MarkCompleted(c.Request.Context(), jobID, models.ThumbnailArtifact{
		FileRef:   input.FileRef,
		SizeBytes: input.SizeBytes,
		Width:     input.Width,
		Height:    input.Height,
	})
	if err != nil {
		h.sendQueueError(c, err)
		return
	}

	utils.SendSuccess(c, "Job completed", gin.H{"jobId": jobID})
}

// Fail reports a failed render attempt; the queue decides retry vs dead
func (h *JobHandler) Fail(c *gin.Context) {
	jobID, ok := utils.ParseIDParam(c, "id")
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Invalid job ID", nil)
		return
	}

	var input struct {
		ErrorMessage string `json:"errorMessage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.SendValidationError(c, err)
		return
	}

	if err := h.queue.MarkFailed(c.Request.Context(), jobID, input.ErrorMessage); err != nil {
		h.sendQueueError(c, err)
		return
	}

	utils.SendSuccess(c, "Job failure recorded", gin.H{"jobId": jobID})
}

// Retry is the admin override: any job back to pending with a fresh budget
func (h *JobHandler) Retry(c *gin.Context) {
	jobID, ok := utils.ParseIDParam(c, "id")
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Invalid job ID", nil)
		return
	}

	job, err := h.queue.Retry(c.Request.Context(), jobID)
	if err != nil {
		h.sendQueueError(c, err)
		return
	}

	utils.SendSuccess(c, "Job reset for retry", job)
}

// Get returns a single job
func (h *JobHandler) Get(c *gin.Context) {
	jobID, ok := utils.ParseIDParam(c, "id")
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Invalid job ID", nil)
		return
	}

	job, err := h.queue.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.sendQueueError(c, err)
		return
	}

	utils.SendSuccess(c, "Job found", job)
}

// List returns jobs, optionally filtered by ?status=
func (h *JobHandler) List(c *gin.Context) {
	status := models.JobStatus(c.Query("status"))
	page, limit := utils.GetPagination(c)

	jobs, err := h.queue.ListJobs(c.Request.Context(), status, limit, utils.GetOffset(page, limit))
	if err != nil {
		h.sendQueueError(c, err)
		return
	}

	utils.SendSuccess(c, "Jobs listed", jobs)
}

func (h *JobHandler) sendQueueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrInvalidModelHash),
		errors.Is(err, queue.ErrInvalidArgument):
		utils.SendError(c, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, queue.ErrJobNotFound):
		utils.SendError(c, http.StatusNotFound, "Job not found", err)
	default:
		utils.SendInternalError(c, err)
	}
}
