package thumbnails

import (
	"context"
	"errors"
	"time"

	"modelvault-backend/internal/models"
)

var ErrRecordNotFound = errors.New("thumbnail record not found")

// RecordStore persists the per-version thumbnail artifact rows. Rows are
// keyed by model version and updated in place; the Set* methods create the
// row when it does not exist yet.
type RecordStore interface {
	// Get returns ErrRecordNotFound for unknown versions.
	Get(ctx context.Context, modelVersionID int64) (*models.ThumbnailRecord, error)

	// ActiveForModel returns the record of the model's newest version, or
	// ErrRecordNotFound.
	ActiveForModel(ctx context.Context, modelID int64) (*models.ThumbnailRecord, error)

	// EnsurePending creates the row in pending, or resets an existing row to
	// pending clearing artifact and error fields.
	EnsurePending(ctx context.Context, modelID, modelVersionID int64, now time.Time) (*models.ThumbnailRecord, error)

	SetProcessing(ctx context.Context, modelID, modelVersionID int64, now time.Time) (*models.ThumbnailRecord, error)

	// SetReady stores the artifact fields and stamps processed_at.
	SetReady(ctx context.Context, modelID, modelVersionID int64, artifact models.ThumbnailArtifact, now time.Time) (*models.ThumbnailRecord, error)

	// SetFailed stores the error and stamps processed_at.
	SetFailed(ctx context.Context, modelID, modelVersionID int64, errorMessage string, now time.Time) (*models.ThumbnailRecord, error)
}
