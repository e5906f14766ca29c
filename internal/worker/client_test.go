package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelvault-backend/internal/models"
)

func TestAPIClientDequeue(t *testing.T) {
	job := models.ThumbnailJob{
		ID:             12,
		ModelID:        1,
		ModelVersionID: 2,
		ModelHash:      strings.Repeat("a", 64),
		Status:         models.JobStatusProcessing,
		AttemptCount:   1,
		MaxAttempts:    3,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/thumbnail-jobs/dequeue", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "w1", body["workerId"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "Job claimed",
			"data":    job,
		})
	}))
	defer server.Close()

	client := NewAPIClient(server.URL)
	got, err := client.Dequeue(context.Background(), "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.ModelHash, got.ModelHash)
	assert.Equal(t, job.Status, got.Status)
}

func TestAPIClientDequeueEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewAPIClient(server.URL)
	got, err := client.Dequeue(context.Background(), "w1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAPIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/thumbnail-jobs/12/complete", r.URL.Path)

		var body models.ThumbnailArtifact
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "blob/abc", body.FileRef)
		assert.Equal(t, int64(12345), body.SizeBytes)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer server.Close()

	client := NewAPIClient(server.URL)
	err := client.Complete(context.Background(), 12, models.ThumbnailArtifact{
		FileRef: "blob/abc", SizeBytes: 12345, Width: 256, Height: 256,
	})
	require.NoError(t, err)
}

func TestAPIClientFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/thumbnail-jobs/12/fail", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "render timeout", body["errorMessage"])

		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))
	defer server.Close()

	client := NewAPIClient(server.URL)
	require.NoError(t, client.Fail(context.Background(), 12, "render timeout"))
}

func TestAPIClientSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewAPIClient(server.URL)

	_, err := client.Dequeue(context.Background(), "w1")
	assert.Error(t, err)

	err = client.Complete(context.Background(), 1, models.ThumbnailArtifact{FileRef: "r"})
	assert.Error(t, err)

	err = client.Fail(context.Background(), 1, "x")
	assert.Error(t, err)
}
