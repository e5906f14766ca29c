package thumbnails

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"modelvault-backend/internal/models"
	"modelvault-backend/internal/notify"
)

// Service owns the thumbnail artifact record for each model version and
// publishes state-change events to the notification bus. The record is the
// authoritative state; publishes happen after the store write so a lost
// event can never contradict what a poller reads.
type Service struct {
	store RecordStore
	bus   notify.Bus
	now   func() time.Time
}

func NewService(store RecordStore, bus notify.Bus) *Service {
	return &Service{store: store, bus: bus, now: time.Now}
}

// OnVersionObserved creates the pending record when a version is first seen
// by the enqueue path.
func (s *Service) OnVersionObserved(ctx context.Context, modelID, modelVersionID int64) error {
	rec, err := s.store.EnsurePending(ctx, modelID, modelVersionID, s.now())
	if err != nil {
		return fmt.Errorf("ensure pending record: %w", err)
	}
	s.publishStatus(ctx, rec)
	return nil
}

// OnJobStarted marks the record processing when a worker claims the job.
func (s *Service) OnJobStarted(ctx context.Context, modelID, modelVersionID int64) error {
	rec, err := s.store.SetProcessing(ctx, modelID, modelVersionID, s.now())
	if err != nil {
		return fmt.Errorf("set record processing: %w", err)
	}
	s.publishStatus(ctx, rec)
	return nil
}

// OnJobCompleted transitions the record to ready with the reported artifact
// and notifies both the version topic and the model's active-version topic.
func (s *Service) OnJobCompleted(ctx context.Context, modelID, modelVersionID int64, artifact models.ThumbnailArtifact) error {
	rec, err := s.store.SetReady(ctx, modelID, modelVersionID, artifact, s.now())
	if err != nil {
		return fmt.Errorf("set record ready: %w", err)
	}
	s.publishStatus(ctx, rec)
	s.bus.Publish(ctx, notify.Event{
		Topic:          notify.TopicModelActiveVersion(modelID),
		ModelID:        modelID,
		ModelVersionID: modelVersionID,
		Status:         string(rec.Status),
		FileRef:        artifact.FileRef,
		OccurredAt:     s.now(),
	})
	return nil
}

// OnJobFailed transitions the record to failed. The queue only calls this
// once the job is dead; retryable failures never touch the record.
func (s *Service) OnJobFailed(ctx context.Context, modelID, modelVersionID int64, errorMessage string) error {
	rec, err := s.store.SetFailed(ctx, modelID, modelVersionID, errorMessage, s.now())
	if err != nil {
		return fmt.Errorf("set record failed: %w", err)
	}
	s.publishStatus(ctx, rec)
	return nil
}

// OnRegenerationRequested resets the record to pending ahead of a fresh
// enqueue.
func (s *Service) OnRegenerationRequested(ctx context.Context, modelID, modelVersionID int64) error {
	rec, err := s.store.EnsurePending(ctx, modelID, modelVersionID, s.now())
	if err != nil {
		return fmt.Errorf("reset record pending: %w", err)
	}
	s.publishStatus(ctx, rec)
	return nil
}

// GetForModelVersion returns ErrRecordNotFound for unknown versions.
func (s *Service) GetForModelVersion(ctx context.Context, modelVersionID int64) (*models.ThumbnailRecord, error) {
	return s.store.Get(ctx, modelVersionID)
}

// GetActiveForModel returns the record of the model's newest version.
func (s *Service) GetActiveForModel(ctx context.Context, modelID int64) (*models.ThumbnailRecord, error) {
	return s.store.ActiveForModel(ctx, modelID)
}

func (s *Service) publishStatus(ctx context.Context, rec *models.ThumbnailRecord) {
	event := notify.Event{
		Topic:          notify.TopicModelVersionThumbnail(rec.ModelVersionID),
		ModelID:        rec.ModelID,
		ModelVersionID: rec.ModelVersionID,
		Status:         string(rec.Status),
		OccurredAt:     s.now(),
	}
	if rec.FileRef != nil {
		event.FileRef = *rec.FileRef
	}
	s.bus.Publish(ctx, event)
	slog.Debug("thumbnail status changed",
		"model_id", rec.ModelID,
		"model_version_id", rec.ModelVersionID,
		"status", rec.Status,
	)
}
