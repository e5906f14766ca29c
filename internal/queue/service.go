package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modelvault-backend/internal/models"
	"modelvault-backend/internal/thumbnails"
)

// maxErrorMessageLen bounds what workers can persist into error_message.
const maxErrorMessageLen = 2000

// DefaultSweepInterval is the lease sweeper cadence.
const DefaultSweepInterval = time.Minute

// EnqueueParams are the caller-facing enqueue arguments. Zero MaxAttempts
// and LockTimeoutMinutes select the defaults.
type EnqueueParams struct {
	ModelID            int64
	ModelVersionID     int64
	ModelHash          string
	MaxAttempts        int
	LockTimeoutMinutes int
}

// Service implements the job queue state machine over a JobStore. It is
// reentrant: every operation is one short atomic store interaction plus the
// record/notification side effects. The thumbnail record service and the
// bus behind it are explicit collaborators, injected at construction.
type Service struct {
	store         JobStore
	records       *thumbnails.Service
	sweepInterval time.Duration
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSweepInterval overrides the lease sweeper cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock injects the time source used for leases and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store JobStore, records *thumbnails.Service, opts ...Option) *Service {
	s := &Service{
		store:         store,
		records:       records,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue creates a pending job for the model version, or returns the
// existing non-terminal job with the same model hash unchanged. At most one
// in-flight job exists per hash at any instant.
func (s *Service) Enqueue(ctx context.Context, params EnqueueParams) (*models.ThumbnailJob, error) {
	if !models.IsValidModelHash(params.ModelHash) {
		return nil, ErrInvalidModelHash
	}
	if params.ModelID <= 0 || params.ModelVersionID <= 0 {
		return nil, fmt.Errorf("%w: model and version ids must be positive", ErrInvalidArgument)
	}
	if params.MaxAttempts < 0 || params.LockTimeoutMinutes < 0 {
		return nil, fmt.Errorf("%w: attempts and lock timeout must not be negative", ErrInvalidArgument)
	}
	if params.MaxAttempts == 0 {
		params.MaxAttempts = models.DefaultMaxAttempts
	}
	if params.LockTimeoutMinutes == 0 {
		params.LockTimeoutMinutes = models.DefaultLockTimeoutMinutes
	}

	job, created, err := s.store.GetOrCreate(ctx, NewJob(params), s.now())
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	if !created {
		slog.Debug("enqueue deduplicated onto existing job",
			"job_id", job.ID, "model_hash", job.ModelHash)
		return job, nil
	}

	slog.Info("job enqueued",
		"job_id", job.ID,
		"model_id", job.ModelID,
		"model_version_id", job.ModelVersionID,
	)
	if err := s.records.OnVersionObserved(ctx, job.ModelID, job.ModelVersionID); err != nil {
		slog.Error("failed to initialize thumbnail record", "job_id", job.ID, "error", err)
	}
	return job, nil
}

// Dequeue claims the oldest pending job for the worker, moving it to
// processing and consuming an attempt. Returns (nil, nil) when the queue is
// empty. A cancelled context either claims atomically or not at all: the
// Postgres store rolls the claim back, the memory store claims under its
// mutex before any suspension point — a job is never left half-claimed.
func (s *Service) Dequeue(ctx context.Context, workerID string) (*models.ThumbnailJob, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", ErrInvalidArgument)
	}

	job, err := s.store.ClaimNext(ctx, workerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	slog.Info("job claimed",
		"job_id", job.ID,
		"worker_id", workerID,
		"attempt", job.AttemptCount,
	)
	if err := s.records.OnJobStarted(ctx, job.ModelID, job.ModelVersionID); err != nil {
		slog.Error("failed to mark record processing", "job_id", job.ID, "error", err)
	}
	return job, nil
}

// MarkCompleted transitions a processing job to completed and promotes the
// record to ready with the reported artifact. Completing an already
// completed job is a no-op; completing a job in any other state is logged
// and ignored. Lease validity is deliberately not checked: a worker that
// finished after its lease expired still completes the job, so progress
// does not depend on the lock timeout.
func (s *Service) MarkCompleted(ctx context.Context, jobID int64, artifact models.ThumbnailArtifact) error {
	job, err := s.store.CompleteProcessing(ctx, jobID, s.now())
	if errors.Is(err, ErrInvalidTransition) {
		current, getErr := s.store.GetByID(ctx, jobID)
		if getErr != nil {
			return fmt.Errorf("load job %d: %w", jobID, getErr)
		}
		slog.Warn("ignoring completion for job not in processing",
			"job_id", jobID, "status", current.Status)
		return nil
	}
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("complete job %d: %w", jobID, err)
	}

	slog.Info("job completed", "job_id", job.ID, "file_ref", artifact.FileRef)
	if err := s.records.OnJobCompleted(ctx, job.ModelID, job.ModelVersionID, artifact); err != nil {
		slog.Error("failed to mark record ready", "job_id", job.ID, "error", err)
	}
	return nil
}

// MarkFailed records the error and either returns the job to pending for
// another attempt or moves it to dead when the budget is exhausted. Only
// the dead transition touches the thumbnail record. Failing a terminal job
// is logged and ignored.
func (s *Service) MarkFailed(ctx context.Context, jobID int64, errorMessage string) error {
	if len(errorMessage) > maxErrorMessageLen {
		errorMessage = errorMessage[:maxErrorMessageLen]
	}

	job, err := s.store.Fail(ctx, jobID, errorMessage, s.now())
	if errors.Is(err, ErrInvalidTransition) {
		current, getErr := s.store.GetByID(ctx, jobID)
		if getErr != nil {
			return fmt.Errorf("load job %d: %w", jobID, getErr)
		}
		slog.Warn("ignoring failure report for terminal job",
			"job_id", jobID, "status", current.Status)
		return nil
	}
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("fail job %d: %w", jobID, err)
	}

	if job.Status == models.JobStatusDead {
		slog.Warn("job dead-lettered",
			"job_id", job.ID,
			"attempts", job.AttemptCount,
			"error", errorMessage,
		)
		if err := s.records.OnJobFailed(ctx, job.ModelID, job.ModelVersionID, errorMessage); err != nil {
			slog.Error("failed to mark record failed", "job_id", job.ID, "error", err)
		}
		return nil
	}

	slog.Info("job failed, returned to pending",
		"job_id", job.ID,
		"attempt", job.AttemptCount,
		"max_attempts", job.MaxAttempts,
	)
	return nil
}

// Retry is the admin override: any job, dead included, goes back to pending
// with a fresh attempt budget.
func (s *Service) Retry(ctx context.Context, jobID int64) (*models.ThumbnailJob, error) {
	job, err := s.store.Reset(ctx, jobID, s.now())
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reset job %d: %w", jobID, err)
	}
	slog.Info("job reset for retry", "job_id", job.ID)
	return job, nil
}

// CancelActiveForModel cancels every non-terminal job for the model,
// returning the count. Called when upstream declares the version obsolete.
func (s *Service) CancelActiveForModel(ctx context.Context, modelID int64) (int64, error) {
	n, err := s.store.CancelActiveForModel(ctx, modelID, s.now())
	if err != nil {
		return 0, fmt.Errorf("cancel jobs for model %d: %w", modelID, err)
	}
	if n > 0 {
		slog.Info("cancelled active jobs", "model_id", modelID, "count", n)
	}
	return n, nil
}

// RequestRegeneration cancels the model's in-flight work, resets its record
// to pending and enqueues a fresh job reusing the latest job's version and
// hash.
func (s *Service) RequestRegeneration(ctx context.Context, modelID int64) (*models.ThumbnailJob, error) {
	latest, err := s.store.LatestForModel(ctx, modelID)
	if err != nil {
		return nil, err
	}

	if _, err := s.CancelActiveForModel(ctx, modelID); err != nil {
		return nil, err
	}
	if err := s.records.OnRegenerationRequested(ctx, latest.ModelID, latest.ModelVersionID); err != nil {
		slog.Error("failed to reset record for regeneration", "model_id", modelID, "error", err)
	}

	return s.Enqueue(ctx, EnqueueParams{
		ModelID:            latest.ModelID,
		ModelVersionID:     latest.ModelVersionID,
		ModelHash:          latest.ModelHash,
		MaxAttempts:        latest.MaxAttempts,
		LockTimeoutMinutes: latest.LockTimeoutMinutes,
	})
}

// GetJob returns the job or ErrJobNotFound.
func (s *Service) GetJob(ctx context.Context, jobID int64) (*models.ThumbnailJob, error) {
	return s.store.GetByID(ctx, jobID)
}

// ListJobs returns jobs filtered by status (empty = all), newest first.
func (s *Service) ListJobs(ctx context.Context, status models.JobStatus, limit, offset int) ([]models.ThumbnailJob, error) {
	return s.store.List(ctx, status, limit, offset)
}

// SweepExpiredLeases returns every processing job with an expired lease to
// pending. The prior claim keeps its consumed attempt. Exposed for tests
// and admin tooling; RunSweeper calls it on a ticker.
func (s *Service) SweepExpiredLeases(ctx context.Context) (int64, error) {
	n, err := s.store.ReleaseExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("release expired leases: %w", err)
	}
	if n > 0 {
		slog.Info("released expired job leases", "count", n)
	}
	return n, nil
}

// RunSweeper runs the lease sweeper until the context is cancelled.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	slog.Info("lease sweeper started", "interval", s.sweepInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("lease sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepExpiredLeases(ctx); err != nil && ctx.Err() == nil {
				slog.Error("lease sweep failed", "error", err)
			}
		}
	}
}
