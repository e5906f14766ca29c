package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToTopicAndBroadcast(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	versionCh, cancelVersion := hub.Subscribe(TopicModelVersionThumbnail(7), 4)
	defer cancelVersion()
	allCh, cancelAll := hub.Subscribe(TopicAllModels, 4)
	defer cancelAll()
	otherCh, cancelOther := hub.Subscribe(TopicModelVersionThumbnail(8), 4)
	defer cancelOther()

	event := Event{
		Topic:          TopicModelVersionThumbnail(7),
		ModelID:        42,
		ModelVersionID: 7,
		Status:         "ready",
		OccurredAt:     time.Now(),
	}
	hub.Publish(ctx, event)

	got := <-versionCh
	assert.Equal(t, event, got)
	got = <-allCh
	assert.Equal(t, event, got)

	select {
	case <-otherCh:
		t.Fatal("event delivered to unrelated topic")
	default:
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	ch, cancel := hub.Subscribe("t", 1)
	defer cancel()

	hub.Publish(ctx, Event{Topic: "t", Status: "pending"})
	hub.Publish(ctx, Event{Topic: "t", Status: "processing"}) // buffer full, dropped
	hub.Publish(ctx, Event{Topic: "t", Status: "ready"})      // still full, dropped

	got := <-ch
	assert.Equal(t, "pending", got.Status)
	select {
	case extra := <-ch:
		t.Fatalf("expected dropped events, got %v", extra)
	default:
	}
}

func TestHubCancelUnsubscribes(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("t", 1)
	require.Equal(t, 1, hub.SubscriberCount("t"))

	cancel()
	assert.Equal(t, 0, hub.SubscriberCount("t"))

	_, open := <-ch
	assert.False(t, open)

	// Safe to cancel twice.
	cancel()

	// Publishing after cancel never panics or blocks.
	hub.Publish(context.Background(), Event{Topic: "t"})
}
