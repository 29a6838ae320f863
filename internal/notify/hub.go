// Package notify fans queue events out to connected print stations.
package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// EventType names the kinds of events pushed to stations.
type EventType string

const (
	EventNewJob     EventType = "new_job"
	EventQueueDepth EventType = "queue_depth"
)

// Event is a hint for stations to re-poll. It is never authoritative.
type Event struct {
	Type    EventType `json:"type"`
	JobID   string    `json:"jobId,omitempty"`
	Pending int       `json:"pending"`
}

// Publisher is what the queue needs from the hub.
type Publisher interface {
	Publish(ev Event)
}

// Hub holds the set of connected listeners.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	dropped atomic.Uint64
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

// Subscription is one listener's buffered event stream.
type Subscription struct {
	id     uint64
	hub    *Hub
	ch     chan Event
	closed bool
}

// Events returns the channel events are delivered on. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close removes the subscription from its hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Subscribe registers a listener with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{id: h.nextID, hub: h, ch: make(chan Event, buffer)}
	h.subs[sub.id] = sub
	h.logger.Debug("Station subscribed", "subscription_id", sub.id, "subscribers", len(h.subs))
	return sub
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	delete(h.subs, s.id)
	close(s.ch)
	h.logger.Debug("Station unsubscribed", "subscription_id", s.id, "subscribers", len(h.subs))
}

// Publish delivers ev to every subscriber without blocking. Subscribers with
// a full buffer miss the event.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
			h.logger.Debug("Dropping event for slow station", "subscription_id", sub.id, "type", ev.Type)
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because of full buffers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
