package engine

import (
	"sync"

	"github.com/google/uuid"
)

// eventBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses events rather than stalling the merge
// path.
const eventBuffer = 16

// Event is one state-change notification.
type Event struct {
	Serial  string    `json:"serial"`
	Changes ChangeSet `json:"changes"`
}

// Bus fans state-change events out to subscribers.
//
// Thread Safety: all methods are safe for concurrent use. Publish
// never blocks.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber and returns its id and event
// channel. The channel closes on Unsubscribe.
func (b *Bus) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, eventBuffer)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// ids are a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers an event to every subscriber, dropping it for
// subscribers whose buffer is full.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
