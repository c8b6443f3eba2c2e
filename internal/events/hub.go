// Package events fans out download notifications to in-process listeners.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/egfanboy/mediapire-offline/internal/metrics"
)

const (
	TypeProgress = "offline.download.progress"
	TypeFinished = "offline.download.finished"

	subscriberBuffer = 64
)

type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// Hub delivers every published event to all subscribers. Publishing never
// blocks, a subscriber whose buffer is full misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener. The caller must Unsubscribe when done.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.SetEventSubscribers(count)

	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.SetEventSubscribers(count)
}

func (h *Hub) Publish(eventType string, payload interface{}) {
	event := Event{Type: eventType, Payload: payload, Timestamp: time.Now().UnixMilli()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			metrics.RecordEventDropped(eventType)
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}

func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
