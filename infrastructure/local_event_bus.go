package infrastructure

import (
	"context"
	"sync"

	"rafflepool/domain/events"

	log "github.com/sirupsen/logrus"
)

// LocalHandler handles an event delivered in-process
type LocalHandler func(ctx context.Context, event events.Event)

// LocalEventBus fans committed ledger events out to in-process handlers.
// Used in place of NATS when the broker is disabled.
type LocalEventBus struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]LocalHandler
	wg       sync.WaitGroup
}

// NewLocalEventBus creates a new in-process event bus
func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{
		handlers: make(map[events.EventType][]LocalHandler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *LocalEventBus) Subscribe(eventType events.EventType, handler LocalHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to local event bus")
}

// SubscribeAll adds handler for every ledger event type
func (b *LocalEventBus) SubscribeAll(handler LocalHandler) {
	for _, eventType := range events.AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// Publish dispatches event to its handlers asynchronously. A panicking handler
// is logged and does not affect the others.
func (b *LocalEventBus) Publish(event events.Event) error {
	b.mu.RLock()
	handlers := make([]LocalHandler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Committed events outlive the request that produced them
	ctx := context.Background()
	for i, handler := range handlers {
		b.wg.Add(1)
		go func(h LocalHandler, handlerIndex int) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Local event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
	return nil
}

// Wait blocks until every dispatched handler has returned
func (b *LocalEventBus) Wait() {
	b.wg.Wait()
}
