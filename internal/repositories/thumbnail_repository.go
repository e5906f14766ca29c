package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modelvault-backend/internal/database"
	"modelvault-backend/internal/models"
	"modelvault-backend/internal/thumbnails"
)

const recordColumns = `
	model_version_id, model_id, status, file_ref, width, height,
	size_bytes, error_message, created_at, processed_at`

// ThumbnailRepository is the Postgres thumbnails.RecordStore. One row per
// model version, upserted in place.
type ThumbnailRepository struct {
	db *database.DB
}

func NewThumbnailRepository(db *database.DB) *ThumbnailRepository {
	return &ThumbnailRepository{db: db}
}

func (r *ThumbnailRepository) Get(ctx context.Context, modelVersionID int64) (*models.ThumbnailRecord, error) {
	var rec models.ThumbnailRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT`+recordColumns+`
		FROM thumbnail_records WHERE model_version_id = $1`, modelVersionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, thumbnails.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get thumbnail record: %w", err)
	}
	return &rec, nil
}

func (r *ThumbnailRepository) ActiveForModel(ctx context.Context, modelID int64) (*models.ThumbnailRecord, error) {
	var rec models.ThumbnailRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT`+recordColumns+`
		FROM thumbnail_records
		WHERE model_id = $1
		ORDER BY model_version_id DESC
		LIMIT 1`, modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, thumbnails.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active thumbnail record: %w", err)
	}
	return &rec, nil
}

func (r *ThumbnailRepository) EnsurePending(ctx context.Context, modelID, modelVersionID int64, now time.Time) (*models.ThumbnailRecord, error) {
	var rec models.ThumbnailRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO thumbnail_records (model_version_id, model_id, status, created_at)
		VALUES ($1, $2, 'pending', $3)
		ON CONFLICT (model_version_id) DO UPDATE
		SET status = 'pending',
		    file_ref = NULL,
		    width = NULL,
		    height = NULL,
		    size_bytes = NULL,
		    error_message = NULL,
		    processed_at = NULL
		RETURNING`+recordColumns, modelVersionID, modelID, now)
	if err != nil {
		return nil, fmt.Errorf("ensure pending record: %w", err)
	}
	return &rec, nil
}

func (r *ThumbnailRepository) SetProcessing(ctx context.Context, modelID, modelVersionID int64, now time.Time) (*models.ThumbnailRecord, error) {
	var rec models.ThumbnailRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO thumbnail_records (model_version_id, model_id, status, created_at)
		VALUES ($1, $2, 'processing', $3)
		ON CONFLICT (model_version_id) DO UPDATE
		SET status = 'processing'
		RETURNING`+recordColumns, modelVersionID, modelID, now)
	if err != nil {
		return nil, fmt.Errorf("set record processing: %w", err)
	}
	return &rec, nil
}

func (r *ThumbnailRepository) SetReady(ctx context.Context, modelID, modelVersionID int64, artifact models.ThumbnailArtifact, now time.Time) (*models.ThumbnailRecord, error) {
	var rec models.ThumbnailRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO thumbnail_records (
			model_version_id, model_id, status, file_ref, width, height,
			size_bytes, created_at, processed_at
		) VALUES ($1, $2, 'ready', $3, $4, $5, $6, $7, $7)
		ON CONFLICT (model_version_id) DO UPDATE
		SET status = 'ready',
		    file_ref = EXCLUDED.file_ref,
		    width = EXCLUDED.width,
		    height = EXCLUDED.height,
		    size_bytes = EXCLUDED.size_bytes,
		    error_message = NULL,
		    processed_at = EXCLUDED.processed_at
		RETURNING`+recordColumns,
		modelVersionID, modelID, artifact.FileRef, artifact.Width,
		artifact.Height, artifact.SizeBytes, now)
	if err != nil {
		return nil, fmt.Errorf("set record ready: %w", err)
	}
	return &rec, nil
}

func (r *ThumbnailRepository) SetFailed(ctx context.Context, modelID, modelVersionID int64, errorMessage string, now time.Time) (*models.ThumbnailRecord, error) {
	var rec models.ThumbnailRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO thumbnail_records (
			model_version_id, model_id, status, error_message, created_at, processed_at
		) VALUES ($1, $2, 'failed', $3, $4, $4)
		ON CONFLICT (model_version_id) DO UPDATE
		SET status = 'failed',
		    error_message = EXCLUDED.error_message,
		    processed_at = EXCLUDED.processed_at
		RETURNING`+recordColumns, modelVersionID, modelID, errorMessage, now)
	if err != nil {
		return nil, fmt.Errorf("set record failed: %w", err)
	}
	return &rec, nil
}
