package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"modelvault-backend/internal/config"
	"modelvault-backend/internal/models"
	"modelvault-backend/internal/render"
	"modelvault-backend/internal/storage"
)

// BlobStore is the subset of the blob client the runtime needs.
type BlobStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// uploadConcurrency caps parallel orbit-frame uploads.
const uploadConcurrency = 4

// Runtime is a long-lived worker process: it polls the control plane for a
// job, renders it, uploads the artifacts and reports the outcome. One job
// at a time per worker; parallelism comes from running more workers. The
// database behind the control plane is the only synchronization point.
type Runtime struct {
	client   ControlPlane
	blobs    BlobStore
	engine   render.Engine
	workerID string

	pollInterval time.Duration
	width        int
	height       int
	orbitFrames  int
}

func NewRuntime(client ControlPlane, blobs BlobStore, engine render.Engine, cfg config.Worker) *Runtime {
	return &Runtime{
		client:       client,
		blobs:        blobs,
		engine:       engine,
		workerID:     ResolveWorkerID(cfg.WorkerID),
		pollInterval: cfg.PollInterval,
		width:        cfg.RenderWidth,
		height:       cfg.RenderHeight,
		orbitFrames:  cfg.OrbitFrames,
	}
}

// WorkerID returns the identity used on dequeue calls.
func (r *Runtime) WorkerID() string { return r.workerID }

// Run polls until the context is cancelled. A bad job never stops the
// worker: every render-path error becomes a failure report and the loop
// continues.
func (r *Runtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	slog.Info("worker started",
		"worker_id", r.workerID,
		"poll_interval", r.pollInterval,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped", "worker_id", r.workerID)
			return ctx.Err()
		case <-ticker.C:
			job, err := r.client.Dequeue(ctx, r.workerID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("dequeue failed", "worker_id", r.workerID, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			r.processJob(ctx, job)
		}
	}
}

func (r *Runtime) processJob(ctx context.Context, job *models.ThumbnailJob) {
	// The scene must be cleared after every job; otherwise models
	// accumulate across renders.
	defer r.engine.Reset()

	log := slog.With("worker_id", r.workerID, "job_id", job.ID,
		"model_version_id", job.ModelVersionID)
	log.Info("processing job", "attempt", job.AttemptCount)

	artifact, err := r.renderJob(ctx, job)
	if err != nil {
		log.Warn("job failed", "error", err)
		if reportErr := r.client.Fail(ctx, job.ID, err.Error()); reportErr != nil {
			// Swallowed: the lease will expire and the job will be retried.
			log.Error("failed to report job failure", "error", reportErr)
		}
		return
	}

	if err := r.client.Complete(ctx, job.ID, *artifact); err != nil {
		// Swallowed: a later worker will re-render the same content, which
		// is acceptable — blob writes are content-addressed.
		log.Error("failed to report job completion", "error", err)
		return
	}
	log.Info("job completed", "file_ref", artifact.FileRef)
}

func (r *Runtime) renderJob(ctx context.Context, job *models.ThumbnailJob) (*models.ThumbnailArtifact, error) {
	source, err := r.blobs.GetObject(ctx, storage.ModelSourceKey(job.ModelHash))
	if err != nil {
		return nil, fmt.Errorf("download source model: %w", err)
	}

	result, err := r.engine.Render(ctx, source, render.Options{
		Width:       r.width,
		Height:      r.height,
		OrbitFrames: r.orbitFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	posterData, width, height, err := render.EncodePNG(result.Poster, r.width, r.height)
	if err != nil {
		return nil, fmt.Errorf("encode poster: %w", err)
	}

	posterKey := storage.ThumbnailKey(job.ModelHash, "poster.png")
	if err := r.blobs.PutObject(ctx, posterKey, posterData, "image/png"); err != nil {
		return nil, fmt.Errorf("upload poster: %w", err)
	}

	if len(result.Orbit) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(uploadConcurrency)
		for i, frame := range result.Orbit {
			g.Go(func() error {
				data, _, _, err := render.EncodePNG(frame, r.width, r.height)
				if err != nil {
					return fmt.Errorf("encode orbit frame %d: %w", i, err)
				}
				key := storage.ThumbnailKey(job.ModelHash, fmt.Sprintf("orbit/%03d.png", i))
				if err := r.blobs.PutObject(gctx, key, data, "image/png"); err != nil {
					return fmt.Errorf("upload orbit frame %d: %w", i, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return &models.ThumbnailArtifact{
		FileRef:   posterKey,
		SizeBytes: int64(len(posterData)),
		Width:     width,
		Height:    height,
	}, nil
}
