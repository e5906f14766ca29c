package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"modelvault-backend/internal/models"
)

// MemoryStore is a JobStore kept entirely in process memory. It backs
// single-process deployments and the test suite; durability across restarts
// comes from the Postgres store. All operations run under one mutex, so a
// claim either happens completely before any concurrent observer or not at
// all — a cancelled context never leaves a half-claimed job.
type MemoryStore struct {
	mu     sync.Mutex
	jobs   map[int64]*models.ThumbnailJob
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[int64]*models.ThumbnailJob), nextID: 1}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, params NewJob, now time.Time) (*models.ThumbnailJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.ModelHash == params.ModelHash && !j.Status.IsTerminal() {
			return copyJob(j), false, nil
		}
	}

	job := &models.ThumbnailJob{
		ID:                 s.nextID,
		ModelID:            params.ModelID,
		ModelVersionID:     params.ModelVersionID,
		ModelHash:          params.ModelHash,
		Status:             models.JobStatusPending,
		AttemptCount:       0,
		MaxAttempts:        params.MaxAttempts,
		LockTimeoutMinutes: params.LockTimeoutMinutes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.nextID++
	s.jobs[job.ID] = job
	return copyJob(job), true, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*models.ThumbnailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(job), nil
}

func (s *MemoryStore) List(_ context.Context, status models.JobStatus, limit, offset int) ([]models.ThumbnailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ThumbnailJob
	for _, j := range s.jobs {
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, *copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID > out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ClaimNext(_ context.Context, workerID string, now time.Time) (*models.ThumbnailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *models.ThumbnailJob
	for _, j := range s.jobs {
		if j.Status != models.JobStatusPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) ||
			(j.CreatedAt.Equal(oldest.CreatedAt) && j.ID < oldest.ID) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, nil
	}

	worker := workerID
	claimedAt := now
	oldest.Status = models.JobStatusProcessing
	oldest.ClaimedBy = &worker
	oldest.ClaimedAt = &claimedAt
	oldest.AttemptCount++
	oldest.UpdatedAt = now
	return copyJob(oldest), nil
}

func (s *MemoryStore) CompleteProcessing(_ context.Context, id int64, now time.Time) (*models.ThumbnailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != models.JobStatusProcessing {
		return nil, ErrInvalidTransition
	}

	completedAt := now
	job.Status = models.JobStatusCompleted
	job.ClaimedBy = nil
	job.ClaimedAt = nil
	job.CompletedAt = &completedAt
	job.UpdatedAt = now
	return copyJob(job), nil
}

func (s *MemoryStore) Fail(_ context.Context, id int64, errorMessage string, now time.Time) (*models.ThumbnailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return nil, ErrInvalidTransition
	}

	msg := errorMessage
	job.ErrorMessage = &msg
	job.ClaimedBy = nil
	job.ClaimedAt = nil
	if job.AttemptCount >= job.MaxAttempts {
		job.Status = models.JobStatusDead
	} else {
		job.Status = models.JobStatusPending
	}
	job.UpdatedAt = now
	return copyJob(job), nil
}

func (s *MemoryStore) Reset(_ context.Context, id int64, now time.Time) (*models.ThumbnailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	job.Status = models.JobStatusPending
	job.AttemptCount = 0
	job.ClaimedBy = nil
	job.ClaimedAt = nil
	job.ErrorMessage = nil
	job.CompletedAt = nil
	job.UpdatedAt = now
	return copyJob(job), nil
}

func (s *MemoryStore) CancelActiveForModel(_ context.Context, modelID int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, j := range s.jobs {
		if j.ModelID != modelID || j.Status.IsTerminal() {
			continue
		}
		j.Status = models.JobStatusCancelled
		j.ClaimedBy = nil
		j.ClaimedAt = nil
		j.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *MemoryStore) ReleaseExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, j := range s.jobs {
		if j.Status != models.JobStatusProcessing || !j.LeaseExpired(now) {
			continue
		}
		j.Status = models.JobStatusPending
		j.ClaimedBy = nil
		j.ClaimedAt = nil
		j.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *MemoryStore) LatestForModel(_ context.Context, modelID int64) (*models.ThumbnailJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.ThumbnailJob
	for _, j := range s.jobs {
		if j.ModelID != modelID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) ||
			(j.CreatedAt.Equal(latest.CreatedAt) && j.ID > latest.ID) {
			latest = j
		}
	}
	if latest == nil {
		return nil, ErrJobNotFound
	}
	return copyJob(latest), nil
}

func copyJob(j *models.ThumbnailJob) *models.ThumbnailJob {
	out := *j
	if j.ClaimedBy != nil {
		v := *j.ClaimedBy
		out.ClaimedBy = &v
	}
	if j.ClaimedAt != nil {
		v := *j.ClaimedAt
		out.ClaimedAt = &v
	}
	if j.ErrorMessage != nil {
		v := *j.ErrorMessage
		out.ErrorMessage = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		out.CompletedAt = &v
	}
	return &out
}
