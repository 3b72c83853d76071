// Package eventbus provides a small in-process fan-out pub/sub bus used to
// notify interested parties (remaining-credit displays, SSE streams) after
// any entitlement mutation. Publishing is fire-and-forget: it never blocks
// the operation that triggered it, and a slow subscriber only loses its own
// events.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sommetlabs/sommet/internal/domain"
)

// Event types published on the bus.
const (
	EntitlementsChanged = "entitlements.changed"
	PlanChanged         = "plan.changed"
)

// Event is a single message on the bus.
type Event struct {
	Type      string
	UserID    uuid.UUID
	Plan      domain.Plan
	Action    domain.CreditAction // set for credit consumption events
	Timestamp time.Time
}

// Bus is a fan-out pub/sub event bus. Subscribers receive events on a
// buffered channel; publish is non-blocking and drops events for
// subscribers whose buffers are full.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]map[string]bool // channel -> subscribed types (nil = all)
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[chan Event]map[string]bool),
	}
}

// Subscribe returns a channel that receives events matching the given
// types. If no types are given, all events are received. The channel is
// buffered (64).
func (b *Bus) Subscribe(types ...string) chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		b.subs[ch] = nil
	} else {
		filter := make(map[string]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
		b.subs[ch] = filter
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish sends an event to all matching subscribers. Non-blocking: if a
// subscriber's buffer is full the event is dropped for that subscriber.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, filter := range b.subs {
		if filter != nil && !filter[e.Type] {
			continue
		}
		select {
		case ch <- e:
		default:
			// slow subscriber, drop
		}
	}
}
