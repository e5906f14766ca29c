package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelvault-backend/internal/config"
	"modelvault-backend/internal/models"
	"modelvault-backend/internal/render"
	"modelvault-backend/internal/storage"
)

type stubControlPlane struct {
	mu        sync.Mutex
	jobs      []*models.ThumbnailJob
	completed []models.ThumbnailArtifact
	failed    []string

	completeErr error
	failErr     error
}

func (s *stubControlPlane) Dequeue(_ context.Context, _ string) (*models.ThumbnailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return nil, nil
	}
	job := s.jobs[0]
	s.jobs = s.jobs[1:]
	return job, nil
}

func (s *stubControlPlane) Complete(_ context.Context, _ int64, artifact models.ThumbnailArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = append(s.completed, artifact)
	return nil
}

func (s *stubControlPlane) Fail(_ context.Context, _ int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.failed = append(s.failed, message)
	return nil
}

type stubBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{objects: make(map[string][]byte)}
}

func (s *stubBlobStore) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return data, nil
}

func (s *stubBlobStore) PutObject(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

type stubEngine struct {
	mu          sync.Mutex
	renders     int
	resets      int
	orbitFrames int
	renderErr   error
}

func (e *stubEngine) Render(_ context.Context, _ []byte, opts render.Options) (*render.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renderErr != nil {
		return nil, e.renderErr
	}
	e.renders++
	result := &render.Result{Poster: image.NewRGBA(image.Rect(0, 0, 64, 64))}
	for i := 0; i < e.orbitFrames; i++ {
		result.Orbit = append(result.Orbit, image.NewRGBA(image.Rect(0, 0, 64, 64)))
	}
	return result, nil
}

func (e *stubEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
}

func testJob(id int64) *models.ThumbnailJob {
	return &models.ThumbnailJob{
		ID:             id,
		ModelID:        1,
		ModelVersionID: 1,
		ModelHash:      strings.Repeat("a", 64),
		Status:         models.JobStatusProcessing,
		AttemptCount:   1,
		MaxAttempts:    3,
	}
}

func newTestRuntime(cp ControlPlane, blobs BlobStore, engine render.Engine) *Runtime {
	return NewRuntime(cp, blobs, engine, config.Worker{
		WorkerID:     "test-worker",
		PollInterval: 10 * time.Millisecond,
		RenderWidth:  256,
		RenderHeight: 256,
	})
}

func TestProcessJobSuccess(t *testing.T) {
	job := testJob(1)
	cp := &stubControlPlane{}
	blobs := newStubBlobStore()
	blobs.objects[storage.ModelSourceKey(job.ModelHash)] = []byte("model bytes")
	engine := &stubEngine{}

	rt := newTestRuntime(cp, blobs, engine)
	rt.processJob(context.Background(), job)

	require.Len(t, cp.completed, 1)
	artifact := cp.completed[0]
	assert.Equal(t, storage.ThumbnailKey(job.ModelHash, "poster.png"), artifact.FileRef)
	assert.Equal(t, 64, artifact.Width)
	assert.Equal(t, 64, artifact.Height)
	assert.Greater(t, artifact.SizeBytes, int64(0))
	assert.Contains(t, blobs.objects, artifact.FileRef)
	assert.Empty(t, cp.failed)
	assert.Equal(t, 1, engine.resets)
}

func TestProcessJobUploadsOrbitFrames(t *testing.T) {
	job := testJob(1)
	cp := &stubControlPlane{}
	blobs := newStubBlobStore()
	blobs.objects[storage.ModelSourceKey(job.ModelHash)] = []byte("model bytes")
	engine := &stubEngine{orbitFrames: 3}

	rt := newTestRuntime(cp, blobs, engine)
	rt.processJob(context.Background(), job)

	require.Len(t, cp.completed, 1)
	for i := 0; i < 3; i++ {
		key := storage.ThumbnailKey(job.ModelHash, fmt.Sprintf("orbit/%03d.png", i))
		assert.Contains(t, blobs.objects, key)
	}
}

func TestProcessJobDownloadFailureReportsFail(t *testing.T) {
	job := testJob(2)
	cp := &stubControlPlane{}
	blobs := newStubBlobStore() // source missing
	engine := &stubEngine{}

	rt := newTestRuntime(cp, blobs, engine)
	rt.processJob(context.Background(), job)

	assert.Empty(t, cp.completed)
	require.Len(t, cp.failed, 1)
	assert.Contains(t, cp.failed[0], "download source model")
	// The scene is torn down even when the job fails.
	assert.Equal(t, 1, engine.resets)
}

func TestProcessJobRenderFailureReportsFail(t *testing.T) {
	job := testJob(3)
	cp := &stubControlPlane{}
	blobs := newStubBlobStore()
	blobs.objects[storage.ModelSourceKey(job.ModelHash)] = []byte("model bytes")
	engine := &stubEngine{renderErr: render.ErrNoFrames}

	rt := newTestRuntime(cp, blobs, engine)
	rt.processJob(context.Background(), job)

	assert.Empty(t, cp.completed)
	require.Len(t, cp.failed, 1)
	assert.Contains(t, cp.failed[0], "render")
}

func TestReportErrorsAreSwallowed(t *testing.T) {
	job := testJob(4)
	cp := &stubControlPlane{completeErr: errors.New("api unreachable")}
	blobs := newStubBlobStore()
	blobs.objects[storage.ModelSourceKey(job.ModelHash)] = []byte("model bytes")
	engine := &stubEngine{}

	rt := newTestRuntime(cp, blobs, engine)

	// A failed completion report must not panic or retry; the lease
	// expiry path recovers the job.
	rt.processJob(context.Background(), job)
	assert.Empty(t, cp.completed)
	assert.Equal(t, 1, engine.resets)

	cp2 := &stubControlPlane{failErr: errors.New("api unreachable")}
	rt2 := newTestRuntime(cp2, newStubBlobStore(), &stubEngine{})
	rt2.processJob(context.Background(), testJob(5))
	assert.Empty(t, cp2.failed)
}

func TestSceneResetBetweenJobs(t *testing.T) {
	cp := &stubControlPlane{}
	blobs := newStubBlobStore()
	hash := strings.Repeat("a", 64)
	blobs.objects[storage.ModelSourceKey(hash)] = []byte("model bytes")
	engine := &stubEngine{}

	rt := newTestRuntime(cp, blobs, engine)
	for i := int64(1); i <= 3; i++ {
		rt.processJob(context.Background(), testJob(i))
	}

	// One teardown per job; models must not accumulate across renders.
	assert.Equal(t, 3, engine.resets)
	assert.Equal(t, 3, engine.renders)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	job := testJob(1)
	cp := &stubControlPlane{jobs: []*models.ThumbnailJob{job}}
	blobs := newStubBlobStore()
	blobs.objects[storage.ModelSourceKey(job.ModelHash)] = []byte("model bytes")
	engine := &stubEngine{}

	rt := newTestRuntime(cp, blobs, engine)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := rt.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cp.mu.Lock()
	defer cp.mu.Unlock()
	assert.Len(t, cp.completed, 1)
}

func TestResolveWorkerID(t *testing.T) {
	assert.Equal(t, "explicit", ResolveWorkerID("explicit"))

	a := ResolveWorkerID("")
	b := ResolveWorkerID("")
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
