package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"modelvault-backend/internal/models"
	"modelvault-backend/internal/notify"
	"modelvault-backend/internal/queue"
	"modelvault-backend/internal/thumbnails"
	"modelvault-backend/internal/utils"
)

// ThumbnailHandler serves the client-facing artifact surface: status
// polling, the artifact bytes, regeneration, and the optional SSE push
// channel. Polling the record is the authoritative contract; the SSE
// stream only accelerates awareness.
type ThumbnailHandler struct {
	records *thumbnails.Service
	queue   *queue.Service
	blobs   BlobStreamer
	hub     *notify.Hub // nil when the deployment runs the no-op bus
}

// BlobStreamer is the slice of the blob store needed to serve artifacts.
type BlobStreamer interface {
	GetObjectStream(ctx context.Context, key string) (io.ReadCloser, string, int64, error)
}

func NewThumbnailHandler(records *thumbnails.Service, q *queue.Service, blobs BlobStreamer, hub *notify.Hub) *ThumbnailHandler {
	return &ThumbnailHandler{records: records, queue: q, blobs: blobs, hub: hub}
}

// GetStatus returns the model's active thumbnail record
func (h *ThumbnailHandler) GetStatus(c *gin.Context) {
	modelID, ok := utils.ParseIDParam(c, "id")
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Invalid model ID", nil)
		return
	}

	rec, err := h.records.GetActiveForModel(c.Request.Context(), modelID)
	if errors.Is(err, thumbnails.ErrRecordNotFound) {
		utils.SendError(c, http.StatusNotFound, "No thumbnail for model", err)
		return
	}
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	utils.SendSuccess(c, "Thumbnail status", rec)
}

// GetFile streams the artifact bytes from the blob store
func (h *ThumbnailHandler) GetFile(c *gin.Context) {
	modelID, ok := utils.ParseIDParam(c, "id")
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Invalid model ID", nil)
		return
	}

	rec, err := h.records.GetActiveForModel(c.Request.Context(), modelID)
	if errors.Is(err, thumbnails.ErrRecordNotFound) {
		utils.SendError(c, http.StatusNotFound, "No thumbnail for model", err)
		return
	}
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}
	if rec.Status != models.ThumbnailStatusReady || rec.FileRef == nil {
		utils.SendError(c, http.StatusNotFound, "Thumbnail not ready", nil)
		return
	}

	body, contentType, length, err := h.blobs.GetObjectStream(c.Request.Context(), *rec.FileRef)
	if err != nil {
		utils.SendError(c, http.StatusBadGateway, "Failed to fetch thumbnail from storage", err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, length, contentType, body, nil)
}

// Regenerate cancels in-flight work and schedules a fresh render
func (h *ThumbnailHandler) Regenerate(c *gin.Context) {
	modelID, ok := utils.ParseIDParam(c, "id")
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Invalid model ID", nil)
		return
	}

	job, err := h.queue.RequestRegeneration(c.Request.Context(), modelID)
	if errors.Is(err, queue.ErrJobNotFound) {
		utils.SendError(c, http.StatusNotFound, "Model has no render history", err)
		return
	}
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	utils.SendAccepted(c, "Regeneration scheduled", job)
}

// Events streams thumbnail state changes for the model over SSE. Clients
// must treat events as hints and reconcile against GetStatus; duplicates
// and drops are allowed.
func (h *ThumbnailHandler) Events(c *gin.Context) {
	if h.hub == nil {
		utils.SendError(c, http.StatusNotImplemented, "Push notifications disabled on this deployment", nil)
		return
	}

	modelID, ok := utils.ParseIDParam(c, "id")
	if !ok {
		utils.SendError(c, http.StatusBadRequest, "Invalid model ID", nil)
		return
	}

	events, cancel := h.hub.Subscribe(notify.TopicAllModels, 16)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, open := <-events:
			if !open {
				return false
			}
			if event.ModelID != modelID {
				return true
			}
			c.SSEvent("thumbnail-status-changed", event)
			return true
		}
	})
}
