package queue

import (
	"context"
	"time"

	"modelvault-backend/internal/models"
)

// NewJob carries the parameters for an enqueue.
type NewJob struct {
	ModelID            int64
	ModelVersionID     int64
	ModelHash          string
	MaxAttempts        int
	LockTimeoutMinutes int
}

// JobStore is the durable persistence layer for thumbnail jobs. Every method
// is a single atomic interaction; state transitions against one job are
// linearizable with respect to each other. Implementations: Postgres
// (internal/repositories) and the in-memory store in this package.
//
// All methods take the caller's clock explicitly so lease arithmetic is
// testable without sleeping.
type JobStore interface {
	// GetOrCreate returns the existing non-terminal job for the hash, or
	// creates a fresh pending one. created reports which happened.
	GetOrCreate(ctx context.Context, params NewJob, now time.Time) (job *models.ThumbnailJob, created bool, err error)

	// GetByID returns ErrJobNotFound for unknown ids.
	GetByID(ctx context.Context, id int64) (*models.ThumbnailJob, error)

	// List returns jobs filtered by status (empty = all), newest first.
	List(ctx context.Context, status models.JobStatus, limit, offset int) ([]models.ThumbnailJob, error)

	// ClaimNext atomically claims the oldest pending job for workerID,
	// moving it to processing and consuming an attempt. Returns (nil, nil)
	// when nothing is pending. Safe against concurrent callers: each job is
	// claimed by at most one of them.
	ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.ThumbnailJob, error)

	// CompleteProcessing transitions a processing job to completed, clearing
	// the lease. Returns ErrInvalidTransition when the job is not processing.
	CompleteProcessing(ctx context.Context, id int64, now time.Time) (*models.ThumbnailJob, error)

	// Fail records the error on a non-terminal job and moves it to pending
	// (attempts remain) or dead (budget exhausted), deciding from the row's
	// current state. Returns ErrInvalidTransition when the job is terminal.
	Fail(ctx context.Context, id int64, errorMessage string, now time.Time) (*models.ThumbnailJob, error)

	// Reset is the admin retry: back to pending with a zeroed attempt
	// counter, lease and error cleared. Works from any state.
	Reset(ctx context.Context, id int64, now time.Time) (*models.ThumbnailJob, error)

	// CancelActiveForModel cancels every non-terminal job for the model and
	// returns how many were cancelled.
	CancelActiveForModel(ctx context.Context, modelID int64, now time.Time) (int64, error)

	// ReleaseExpired returns every processing job whose lease has expired to
	// pending, clearing the lease and keeping the attempt counter. Returns
	// the number of jobs released.
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)

	// LatestForModel returns the most recently created job for the model in
	// any state, or ErrJobNotFound.
	LatestForModel(ctx context.Context, modelID int64) (*models.ThumbnailJob, error)
}
