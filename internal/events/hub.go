package events

import (
	"sync"

	"github.com/amishk599/leadsync/internal/model"
)

const subscriberBuffer = 10

// Hub fans encoded events out to subscribers. Slow subscribers drop events
// rather than block the publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

// Subscribe registers a buffered channel that receives every published event
// until Unsubscribe is called.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it. Calling it twice is safe.
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish sends evt to every subscriber without blocking.
func (h *Hub) Publish(evt []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
}

// RunFinished publishes a sync.finished event for summary.
func (h *Hub) RunFinished(summary model.RunSummary) {
	h.Publish(MakeEvent(TypeRunFinished, runFinishedData(summary)))
}
