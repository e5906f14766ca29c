package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"modelvault-backend/internal/models"
)

// ControlPlane is the queue API as the worker sees it.
type ControlPlane interface {
	// Dequeue returns (nil, nil) when no work is pending.
	Dequeue(ctx context.Context, workerID string) (*models.ThumbnailJob, error)
	Complete(ctx context.Context, jobID int64, artifact models.ThumbnailArtifact) error
	Fail(ctx context.Context, jobID int64, errorMessage string) error
}

// APIClient talks to the queue control plane over HTTP.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiEnvelope matches the control plane's standard response shape.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *APIClient) Dequeue(ctx context.Context, workerID string) (*models.ThumbnailJob, error) {
	body := map[string]string{"workerId": workerID}
	status, data, err := c.post(ctx, "/api/v1/thumbnail-jobs/dequeue", body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("dequeue returned status %d", status)
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode dequeue response: %w", err)
	}
	var job models.ThumbnailJob
	if err := json.Unmarshal(env.Data, &job); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return &job, nil
}

func (c *APIClient) Complete(ctx context.Context, jobID int64, artifact models.ThumbnailArtifact) error {
	path := fmt.Sprintf("/api/v1/thumbnail-jobs/%d/complete", jobID)
	status, _, err := c.post(ctx, path, artifact)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("complete returned status %d", status)
	}
	return nil
}

func (c *APIClient) Fail(ctx context.Context, jobID int64, errorMessage string) error {
	path := fmt.Sprintf("/api/v1/thumbnail-jobs/%d/fail", jobID)
	status, _, err := c.post(ctx, path, map[string]string{"errorMessage": errorMessage})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("fail returned status %d", status)
	}
	return nil
}

func (c *APIClient) post(ctx context.Context, path string, body interface{}) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}
