package request

import (
	"context"
	"sync"
	"time"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
)

// Event is a typed change notification. Request is the state as written, so
// subscribers can apply it without refetching the whole table.
type Event struct {
	Type    EventType `json:"type"`
	Request Joined    `json:"request"`
	At      time.Time `json:"at"`
}

// Notifier delivers change events to interested views.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Hub fans events out to in-process subscribers.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewHub() *Hub {
	return &Hub{subs: map[int]func(Event){}}
}

// Subscribe registers fn and returns a handle that removes it. fn runs on the
// notifying goroutine and must not block.
func (h *Hub) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Notify(_ context.Context, e Event) {
	h.mu.RLock()
	fns := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
