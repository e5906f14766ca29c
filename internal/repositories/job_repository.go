package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modelvault-backend/internal/database"
	"modelvault-backend/internal/models"
	"modelvault-backend/internal/queue"
)

const jobColumns = `
	id, model_id, model_version_id, model_hash, status,
	attempt_count, max_attempts, claimed_by, claimed_at,
	lock_timeout_minutes, error_message, created_at, updated_at, completed_at`

// JobRepository is the Postgres queue.JobStore. Atomicity comes from
// single-statement predicate updates; the claim path uses FOR UPDATE SKIP
// LOCKED so concurrent workers never block on or double-claim a row.
type JobRepository struct {
	db *database.DB
}

func NewJobRepository(db *database.DB) *JobRepository {
	return &JobRepository{db: db}
}

// GetOrCreate relies on the partial unique index on model_hash over
// non-terminal rows: the insert is a no-op when an in-flight job already
// holds the hash, and the follow-up select returns it.
func (r *JobRepository) GetOrCreate(ctx context.Context, params queue.NewJob, now time.Time) (*models.ThumbnailJob, bool, error) {
	var job models.ThumbnailJob
	err := r.db.GetContext(ctx, &job, `
		INSERT INTO thumbnail_jobs (
			model_id, model_version_id, model_hash, status,
			attempt_count, max_attempts, lock_timeout_minutes, created_at, updated_at
		) VALUES ($1, $2, $3, 'pending', 0, $4, $5, $6, $6)
		ON CONFLICT (model_hash) WHERE status IN ('pending', 'processing') DO NOTHING
		RETURNING`+jobColumns,
		params.ModelID, params.ModelVersionID, params.ModelHash,
		params.MaxAttempts, params.LockTimeoutMinutes, now)
	if err == nil {
		return &job, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert job: %w", err)
	}

	err = r.db.GetContext(ctx, &job, `
		SELECT`+jobColumns+`
		FROM thumbnail_jobs
		WHERE model_hash = $1 AND status IN ('pending', 'processing')
		LIMIT 1`, params.ModelHash)
	if err != nil {
		return nil, false, fmt.Errorf("get job by hash: %w", err)
	}
	return &job, false, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id int64) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	err := r.db.GetContext(ctx, &job, `
		SELECT`+jobColumns+`
		FROM thumbnail_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) List(ctx context.Context, status models.JobStatus, limit, offset int) ([]models.ThumbnailJob, error) {
	query := `SELECT` + jobColumns + ` FROM thumbnail_jobs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var jobs []models.ThumbnailJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// ClaimNext picks the oldest pending row under SKIP LOCKED and moves it to
// processing in the same statement. A cancelled context rolls the whole
// statement back — the claim either happens completely or not at all.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID string, now time.Time) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	err := r.db.GetContext(ctx, &job, `
		UPDATE thumbnail_jobs
		SET status = 'processing',
		    claimed_by = $1,
		    claimed_at = $2,
		    attempt_count = attempt_count + 1,
		    updated_at = $2
		WHERE id = (
			SELECT id FROM thumbnail_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING`+jobColumns, workerID, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) CompleteProcessing(ctx context.Context, id int64, now time.Time) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	err := r.db.GetContext(ctx, &job, `
		UPDATE thumbnail_jobs
		SET status = 'completed',
		    claimed_by = NULL,
		    claimed_at = NULL,
		    completed_at = $2,
		    updated_at = $2
		WHERE id = $1 AND status = 'processing'
		RETURNING`+jobColumns, id, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.transitionError(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	return &job, nil
}

// Fail decides retry-vs-dead from the row's current state inside the
// update, so two racing failure reports cannot double-count.
func (r *JobRepository) Fail(ctx context.Context, id int64, errorMessage string, now time.Time) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	err := r.db.GetContext(ctx, &job, `
		UPDATE thumbnail_jobs
		SET status = CASE WHEN attempt_count >= max_attempts THEN 'dead' ELSE 'pending' END,
		    error_message = $2,
		    claimed_by = NULL,
		    claimed_at = NULL,
		    updated_at = $3
		WHERE id = $1 AND status IN ('pending', 'processing')
		RETURNING`+jobColumns, id, errorMessage, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.transitionError(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) Reset(ctx context.Context, id int64, now time.Time) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	err := r.db.GetContext(ctx, &job, `
		UPDATE thumbnail_jobs
		SET status = 'pending',
		    attempt_count = 0,
		    claimed_by = NULL,
		    claimed_at = NULL,
		    error_message = NULL,
		    completed_at = NULL,
		    updated_at = $2
		WHERE id = $1
		RETURNING`+jobColumns, id, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reset job: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) CancelActiveForModel(ctx context.Context, modelID int64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE thumbnail_jobs
		SET status = 'cancelled',
		    claimed_by = NULL,
		    claimed_at = NULL,
		    updated_at = $2
		WHERE model_id = $1 AND status NOT IN ('completed', 'dead', 'cancelled')`,
		modelID, now)
	if err != nil {
		return 0, fmt.Errorf("cancel jobs for model: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel jobs rows affected: %w", err)
	}
	return n, nil
}

// ReleaseExpired races legally with completion and failure reports: the
// status predicate makes the reset a no-op for any job that moved on
// between scan and update.
func (r *JobRepository) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE thumbnail_jobs
		SET status = 'pending',
		    claimed_by = NULL,
		    claimed_at = NULL,
		    updated_at = $1
		WHERE status = 'processing'
		  AND claimed_at + make_interval(mins => lock_timeout_minutes) <= $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("release expired leases: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release expired rows affected: %w", err)
	}
	return n, nil
}

func (r *JobRepository) LatestForModel(ctx context.Context, modelID int64) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	err := r.db.GetContext(ctx, &job, `
		SELECT`+jobColumns+`
		FROM thumbnail_jobs
		WHERE model_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest job for model: %w", err)
	}
	return &job, nil
}

// transitionError distinguishes a missing job from a predicate miss.
func (r *JobRepository) transitionError(ctx context.Context, id int64) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM thumbnail_jobs WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check job exists: %w", err)
	}
	if !exists {
		return queue.ErrJobNotFound
	}
	return queue.ErrInvalidTransition
}
