package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:3001/")
	t.Setenv("RENDERER_CMD", "/usr/local/bin/render-model")
	t.Setenv("POLL_INTERVAL_MS", "")
	t.Setenv("WORKER_ID", "")

	cfg, err := LoadWorker()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 256, cfg.RenderWidth)
	assert.Equal(t, 256, cfg.RenderHeight)
	assert.Empty(t, cfg.WorkerID)
}

func TestLoadWorkerFloorsPollInterval(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:3001")
	t.Setenv("RENDERER_CMD", "render")
	t.Setenv("POLL_INTERVAL_MS", "250")

	cfg, err := LoadWorker()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.PollInterval)
}

func TestLoadWorkerRequiresBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("RENDERER_CMD", "render")

	_, err := LoadWorker()
	assert.Error(t, err)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://queue:3001")
	t.Setenv("RENDERER_CMD", "render")
	t.Setenv("WORKER_ID", "render-7")
	t.Setenv("POLL_INTERVAL_MS", "2000")
	t.Setenv("RENDER_WIDTH", "512")
	t.Setenv("RENDER_HEIGHT", "512")
	t.Setenv("ORBIT_FRAMES", "12")

	cfg, err := LoadWorker()
	require.NoError(t, err)
	assert.Equal(t, "render-7", cfg.WorkerID)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 512, cfg.RenderWidth)
	assert.Equal(t, 512, cfg.RenderHeight)
	assert.Equal(t, 12, cfg.OrbitFrames)
}

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("LEASE_SWEEP_INTERVAL_SECONDS", "")
	t.Setenv("NOTIFY_MODE", "")

	cfg := LoadServer()
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "hub", cfg.NotifyMode)
}

func TestLoadServerNoopMode(t *testing.T) {
	t.Setenv("NOTIFY_MODE", "noop")

	cfg := LoadServer()
	assert.Equal(t, "noop", cfg.NotifyMode)
}
