package models

import "time"

// ThumbnailStatus is the client-visible state of a version's thumbnail artifact
type ThumbnailStatus string

const (
	ThumbnailStatusPending    ThumbnailStatus = "pending"
	ThumbnailStatusProcessing ThumbnailStatus = "processing"
	ThumbnailStatusReady      ThumbnailStatus = "ready"
	ThumbnailStatusFailed     ThumbnailStatus = "failed"
)

// ThumbnailRecord is the per-version artifact row. It is created when the
// version is first observed and updated in place, never duplicated. The
// record is the authoritative source of thumbnail state; notifications are
// advisory.
type ThumbnailRecord struct {
	ModelVersionID int64           `db:"model_version_id" json:"modelVersionId"`
	ModelID        int64           `db:"model_id" json:"modelId"`
	Status         ThumbnailStatus `db:"status" json:"status"`
	FileRef        *string         `db:"file_ref" json:"fileRef,omitempty"`
	Width          *int            `db:"width" json:"width,omitempty"`
	Height         *int            `db:"height" json:"height,omitempty"`
	SizeBytes      *int64          `db:"size_bytes" json:"sizeBytes,omitempty"`
	ErrorMessage   *string         `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	ProcessedAt    *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
}

// ThumbnailArtifact carries the blob reference and dimensions a worker
// reports on successful completion.
type ThumbnailArtifact struct {
	FileRef   string `json:"fileRef"`
	SizeBytes int64  `json:"sizeBytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}
