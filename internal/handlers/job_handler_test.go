package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelvault-backend/internal/models"
	"modelvault-backend/internal/notify"
	"modelvault-backend/internal/queue"
	"modelvault-backend/internal/thumbnails"
)

func newJobTestRouter() (*gin.Engine, *queue.Service) {
	gin.SetMode(gin.TestMode)

	records := thumbnails.NewService(thumbnails.NewMemoryRecordStore(), notify.NewNoopBus())
	queueSvc := queue.NewService(queue.NewMemoryStore(), records)

	h := NewJobHandler(queueSvc)
	r := gin.New()
	jobs := r.Group("/api/v1/thumbnail-jobs")
	{
		jobs.POST("", h.Enqueue)
		jobs.GET("", h.List)
		jobs.POST("/dequeue", h.Dequeue)
		jobs.GET("/:id", h.Get)
		jobs.POST("/:id/complete", h.Complete)
		jobs.POST("/:id/fail", h.Fail)
		jobs.POST("/:id/retry", h.Retry)
	}
	return r, queueSvc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJob(t *testing.T, w *httptest.ResponseRecorder) models.ThumbnailJob {
	t.Helper()
	var resp struct {
		Success bool                `json:"success"`
		Data    models.ThumbnailJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func enqueueBody(hash string) map[string]interface{} {
	return map[string]interface{}{
		"modelId":        1,
		"modelVersionId": 1,
		"modelHash":      hash,
	}
}

func TestEnqueueEndpoint(t *testing.T) {
	r, _ := newJobTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", enqueueBody(strings.Repeat("a", 64)))
	require.Equal(t, http.StatusCreated, w.Code)

	job := decodeJob(t, w)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, strings.Repeat("a", 64), job.ModelHash)

	// Same hash again: dedup returns the same job, still 201.
	w = doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", enqueueBody(strings.Repeat("a", 64)))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, job.ID, decodeJob(t, w).ID)
}

func TestEnqueueEndpointRejectsBadHash(t *testing.T) {
	r, _ := newJobTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", enqueueBody("not-a-hash"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", map[string]interface{}{
		"modelId": 1, "modelHash": strings.Repeat("a", 64),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDequeueEndpoint(t *testing.T) {
	r, _ := newJobTestRouter()

	// Empty queue → 204.
	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", map[string]string{"workerId": "w1"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", enqueueBody(strings.Repeat("b", 64)))

	w = doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", map[string]string{"workerId": "w1"})
	require.Equal(t, http.StatusOK, w.Code)
	job := decodeJob(t, w)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	require.NotNil(t, job.ClaimedBy)
	assert.Equal(t, "w1", *job.ClaimedBy)

	// Missing workerId → 400.
	w = doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteAndGetEndpoints(t *testing.T) {
	r, _ := newJobTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", enqueueBody(strings.Repeat("c", 64)))
	job := decodeJob(t, w)
	doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", map[string]string{"workerId": "w1"})

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/thumbnail-jobs/%d/complete", job.ID),
		map[string]interface{}{"fileRef": "blob/abc", "sizeBytes": 12345, "width": 256, "height": 256})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/thumbnail-jobs/%d", job.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.JobStatusCompleted, decodeJob(t, w).Status)

	// Missing artifact fields → 400.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/thumbnail-jobs/%d/complete", job.ID),
		map[string]interface{}{"fileRef": "blob/abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFailAndRetryEndpoints(t *testing.T) {
	r, _ := newJobTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", map[string]interface{}{
		"modelId": 1, "modelVersionId": 1,
		"modelHash": strings.Repeat("d", 64), "maxAttempts": 1,
	})
	job := decodeJob(t, w)
	doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", map[string]string{"workerId": "w1"})

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/thumbnail-jobs/%d/fail", job.ID),
		map[string]string{"errorMessage": "render timeout"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/thumbnail-jobs/%d", job.ID), nil)
	assert.Equal(t, models.JobStatusDead, decodeJob(t, w).Status)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/thumbnail-jobs/%d/retry", job.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	reset := decodeJob(t, w)
	assert.Equal(t, models.JobStatusPending, reset.Status)
	assert.Zero(t, reset.AttemptCount)
}

func TestJobEndpointNotFound(t *testing.T) {
	r, _ := newJobTestRouter()

	w := doJSON(t, r, http.MethodGet, "/api/v1/thumbnail-jobs/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/999/fail",
		map[string]string{"errorMessage": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/thumbnail-jobs/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEndpoint(t *testing.T) {
	r, _ := newJobTestRouter()

	for _, c := range []string{"1", "2", "3"} {
		doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs", enqueueBody(strings.Repeat(c, 64)))
	}
	doJSON(t, r, http.MethodPost, "/api/v1/thumbnail-jobs/dequeue", map[string]string{"workerId": "w1"})

	w := doJSON(t, r, http.MethodGet, "/api/v1/thumbnail-jobs?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []models.ThumbnailJob `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	for _, job := range resp.Data {
		assert.Equal(t, models.JobStatusPending, job.Status)
	}
}
