package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Hub is the in-process Bus implementation backing the SSE push channel.
// Subscribers register per topic; every event is also delivered to the
// all_models broadcast group. Sends never block: a subscriber whose buffer
// is full loses the event and must reconcile against the record.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]chan Event
	nextID int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int64]chan Event)}
}

// Publish delivers the event to subscribers of its topic and to the
// all_models group.
func (h *Hub) Publish(_ context.Context, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliver(event.Topic, event)
	if event.Topic != TopicAllModels {
		h.deliver(TopicAllModels, event)
	}
}

func (h *Hub) deliver(topic string, event Event) {
	for id, ch := range h.subs[topic] {
		select {
		case ch <- event:
		default:
			slog.Debug("dropping notification for slow subscriber",
				"topic", topic, "subscriber_id", id)
		}
	}
}

// Subscribe registers a buffered channel on the topic. The returned cancel
// function unregisters it and closes the channel; it is safe to call more
// than once.
func (h *Hub) Subscribe(topic string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int64]chan Event)
	}
	h.subs[topic][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[topic], id)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscriptions on a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
