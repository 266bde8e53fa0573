package events

import (
	"sync"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/pkg/models"
)

// EventBus fans events out to per-type and catch-all subscribers.
// Delivery is best effort: a subscriber that stops draining its channel
// loses events instead of stalling the publisher.
type EventBus struct {
	mu         sync.RWMutex
	byType     map[models.EventType][]chan *models.Event
	all        []chan *models.Event
	bufferSize int
	closed     bool
}

func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventBus{
		byType:     make(map[models.EventType][]chan *models.Event),
		bufferSize: bufferSize,
	}
}

// Subscribe returns a channel receiving only events of the given type.
func (b *EventBus) Subscribe(eventType models.EventType) <-chan *models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *models.Event, b.bufferSize)
	b.byType[eventType] = append(b.byType[eventType], ch)
	return ch
}

// SubscribeAll returns a channel receiving every published event.
func (b *EventBus) SubscribeAll() <-chan *models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *models.Event, b.bufferSize)
	b.all = append(b.all, ch)
	return ch
}

func (b *EventBus) Publish(event *models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.byType[event.Type] {
		b.send(ch, event)
	}
	for _, ch := range b.all {
		b.send(ch, event)
	}
}

func (b *EventBus) send(ch chan *models.Event, event *models.Event) {
	select {
	case ch <- event:
	default:
		logger.Warnf("Event channel full, dropping event: %s", event.Type)
	}
}

// Close closes all subscriber channels. Publish becomes a no-op afterwards.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subscribers := range b.byType {
		for _, ch := range subscribers {
			close(ch)
		}
	}
	for _, ch := range b.all {
		close(ch)
	}

	b.byType = make(map[models.EventType][]chan *models.Event)
	b.all = nil
}
