package notify

import (
	"context"
	"fmt"
	"time"
)

// Topic names. Delivery is best-effort on every implementation: a lost event
// must never matter for correctness — the thumbnail record is canonical and
// clients reconcile against it.
const TopicAllModels = "all_models"

// TopicModelVersionThumbnail is the per-version thumbnail status channel.
func TopicModelVersionThumbnail(modelVersionID int64) string {
	return fmt.Sprintf("model_version_thumbnail:%d", modelVersionID)
}

// TopicModelActiveVersion carries changes to a model's active version.
func TopicModelActiveVersion(modelID int64) string {
	return fmt.Sprintf("model_active_version:%d", modelID)
}

// Event is a thumbnail state-change notification. OccurredAt increases
// monotonically per version so receivers can discard stale events that
// arrive out of order.
type Event struct {
	Topic          string    `json:"topic"`
	ModelID        int64     `json:"modelId"`
	ModelVersionID int64     `json:"modelVersionId"`
	Status         string    `json:"status"`
	FileRef        string    `json:"fileRef,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Bus fans out state-change events to subscribed clients. Implementations
// must not block the publisher; duplicates and reordering are allowed.
type Bus interface {
	Publish(ctx context.Context, event Event)
}
