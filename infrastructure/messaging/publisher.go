// Package messaging delivers domain events to in-process subscribers.
package messaging

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/domain/events"
)

// InProcessPublisher fans domain events out to registered handlers.
// Delivery is synchronous and in order; a handler that blocks stalls the
// publishing mutation, so handlers must be fast or hand off internally.
type InProcessPublisher struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	all      []ports.EventHandler
}

// NewInProcessPublisher creates an empty publisher
func NewInProcessPublisher(logger *zap.Logger) *InProcessPublisher {
	return &InProcessPublisher{
		logger:   logger,
		handlers: make(map[string][]ports.EventHandler),
	}
}

// Subscribe registers a handler for one event type
func (p *InProcessPublisher) Subscribe(eventType string, handler ports.EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[eventType] = append(p.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type
func (p *InProcessPublisher) SubscribeAll(handler ports.EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.all = append(p.all, handler)
}

// Publish implements ports.EventPublisher
func (p *InProcessPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.RLock()
	typed := p.handlers[event.GetEventType()]
	all := p.all
	p.mu.RUnlock()

	for _, handler := range typed {
		handler.HandleEvent(ctx, event)
	}
	for _, handler := range all {
		handler.HandleEvent(ctx, event)
	}
	return nil
}

// PublishBatch implements ports.EventPublisher
func (p *InProcessPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
