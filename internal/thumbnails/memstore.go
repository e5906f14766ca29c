package thumbnails

import (
	"context"
	"sync"
	"time"

	"modelvault-backend/internal/models"
)

// MemoryRecordStore keeps thumbnail records in process memory. Counterpart
// of the queue package's MemoryStore for single-process deployments and
// tests.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[int64]*models.ThumbnailRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[int64]*models.ThumbnailRecord)}
}

func (s *MemoryRecordStore) Get(_ context.Context, modelVersionID int64) (*models.ThumbnailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[modelVersionID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryRecordStore) ActiveForModel(_ context.Context, modelID int64) (*models.ThumbnailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active *models.ThumbnailRecord
	for _, rec := range s.records {
		if rec.ModelID != modelID {
			continue
		}
		if active == nil || rec.ModelVersionID > active.ModelVersionID {
			active = rec
		}
	}
	if active == nil {
		return nil, ErrRecordNotFound
	}
	return copyRecord(active), nil
}

func (s *MemoryRecordStore) EnsurePending(_ context.Context, modelID, modelVersionID int64, now time.Time) (*models.ThumbnailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.upsert(modelID, modelVersionID, now)
	rec.Status = models.ThumbnailStatusPending
	rec.FileRef = nil
	rec.Width = nil
	rec.Height = nil
	rec.SizeBytes = nil
	rec.ErrorMessage = nil
	rec.ProcessedAt = nil
	return copyRecord(rec), nil
}

func (s *MemoryRecordStore) SetProcessing(_ context.Context, modelID, modelVersionID int64, now time.Time) (*models.ThumbnailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.upsert(modelID, modelVersionID, now)
	rec.Status = models.ThumbnailStatusProcessing
	return copyRecord(rec), nil
}

func (s *MemoryRecordStore) SetReady(_ context.Context, modelID, modelVersionID int64, artifact models.ThumbnailArtifact, now time.Time) (*models.ThumbnailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.upsert(modelID, modelVersionID, now)
	fileRef := artifact.FileRef
	width, height := artifact.Width, artifact.Height
	size := artifact.SizeBytes
	processedAt := now

	rec.Status = models.ThumbnailStatusReady
	rec.FileRef = &fileRef
	rec.Width = &width
	rec.Height = &height
	rec.SizeBytes = &size
	rec.ErrorMessage = nil
	rec.ProcessedAt = &processedAt
	return copyRecord(rec), nil
}

func (s *MemoryRecordStore) SetFailed(_ context.Context, modelID, modelVersionID int64, errorMessage string, now time.Time) (*models.ThumbnailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.upsert(modelID, modelVersionID, now)
	msg := errorMessage
	processedAt := now

	rec.Status = models.ThumbnailStatusFailed
	rec.ErrorMessage = &msg
	rec.ProcessedAt = &processedAt
	return copyRecord(rec), nil
}

// upsert must be called with the mutex held.
func (s *MemoryRecordStore) upsert(modelID, modelVersionID int64, now time.Time) *models.ThumbnailRecord {
	rec, ok := s.records[modelVersionID]
	if !ok {
		rec = &models.ThumbnailRecord{
			ModelVersionID: modelVersionID,
			ModelID:        modelID,
			Status:         models.ThumbnailStatusPending,
			CreatedAt:      now,
		}
		s.records[modelVersionID] = rec
	}
	return rec
}

func copyRecord(r *models.ThumbnailRecord) *models.ThumbnailRecord {
	out := *r
	if r.FileRef != nil {
		v := *r.FileRef
		out.FileRef = &v
	}
	if r.Width != nil {
		v := *r.Width
		out.Width = &v
	}
	if r.Height != nil {
		v := *r.Height
		out.Height = &v
	}
	if r.SizeBytes != nil {
		v := *r.SizeBytes
		out.SizeBytes = &v
	}
	if r.ErrorMessage != nil {
		v := *r.ErrorMessage
		out.ErrorMessage = &v
	}
	if r.ProcessedAt != nil {
		v := *r.ProcessedAt
		out.ProcessedAt = &v
	}
	return &out
}
