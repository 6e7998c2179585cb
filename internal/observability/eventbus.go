package observability

import (
	"context"

	"go.uber.org/zap"
)

// EventBus implements the EventPublisher interface by emitting events
// as structured log entries enriched with request context.
type EventBus struct{}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Publish publishes an event with the given type and data.
func (e *EventBus) Publish(ctx context.Context, eventType string, data map[string]interface{}) {
	fields := make([]zap.Field, 0, len(data)+1)
	fields = append(fields, zap.String("event", eventType))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}

	FromContext(ctx).Info(eventType, fields...)
}
