// Package engine wires the tracker, focus state machine, notifier and rule
// evaluator into a single-session decision loop.
package engine

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// subscriberBuffer is the per-subscriber channel depth. Publishing never
// blocks the engine loop: a subscriber that falls this far behind loses
// events.
const subscriberBuffer = 64

// Bus is the typed outbound event channel owned by the engine.
// Collaborators subscribe explicitly instead of registering ambient
// global listeners.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan domain.Event
	closed bool
	logger *zap.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]chan domain.Event),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its ID and channel.
// The channel is closed on Unsubscribe or when the bus shuts down.
func (b *Bus) Subscribe() (string, <-chan domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan domain.Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
// Unknown IDs are a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers an event to all subscribers without blocking.
// Events to full subscriber channels are dropped and logged.
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				zap.String("subscriber", id),
				zap.String("event", string(event.Type)))
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
