package models

import (
	"regexp"
	"time"
)

// JobStatus represents the lifecycle state of a thumbnail render job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusDead       JobStatus = "dead"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions
// (short of an explicit admin retry).
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusDead || s == JobStatusCancelled
}

const (
	DefaultMaxAttempts        = 3
	DefaultLockTimeoutMinutes = 10
)

// ThumbnailJob is one unit of render work for a specific model version.
// A job is claimed by at most one worker at a time; the claim is a lease
// that expires after LockTimeoutMinutes.
type ThumbnailJob struct {
	ID                 int64      `db:"id" json:"id"`
	ModelID            int64      `db:"model_id" json:"modelId"`
	ModelVersionID     int64      `db:"model_version_id" json:"modelVersionId"`
	ModelHash          string     `db:"model_hash" json:"modelHash"`
	Status             JobStatus  `db:"status" json:"status"`
	AttemptCount       int        `db:"attempt_count" json:"attemptCount"`
	MaxAttempts        int        `db:"max_attempts" json:"maxAttempts"`
	ClaimedBy          *string    `db:"claimed_by" json:"claimedBy,omitempty"`
	ClaimedAt          *time.Time `db:"claimed_at" json:"claimedAt,omitempty"`
	LockTimeoutMinutes int        `db:"lock_timeout_minutes" json:"lockTimeoutMinutes"`
	ErrorMessage       *string    `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
	CompletedAt        *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// LeaseExpired reports whether the job's claim has outlived its lock
// timeout. Only meaningful for jobs in processing.
func (j *ThumbnailJob) LeaseExpired(now time.Time) bool {
	if j.ClaimedAt == nil {
		return false
	}
	deadline := j.ClaimedAt.Add(time.Duration(j.LockTimeoutMinutes) * time.Minute)
	return !now.Before(deadline)
}

var modelHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IsValidModelHash reports whether s is a lowercase hex SHA-256 digest.
func IsValidModelHash(s string) bool {
	return modelHashPattern.MatchString(s)
}
