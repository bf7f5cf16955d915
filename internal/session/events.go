package session

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the registry.
const (
	EventCreated = "session.created"
	EventClosed  = "session.closed"
	EventFailed  = "session.failed"
)

// EventPublisher receives session lifecycle events. Publish is called from
// registry and actor goroutines and must not block for long.
type EventPublisher interface {
	Publish(eventType string, data map[string]any)
}

// EventPublisherFunc adapts a function to EventPublisher.
type EventPublisherFunc func(eventType string, data map[string]any)

// Publish calls f.
func (f EventPublisherFunc) Publish(eventType string, data map[string]any) {
	f(eventType, data)
}

func (r *Registry) publish(eventType string, data map[string]any) {
	if r.events == nil {
		return
	}
	if data == nil {
		data = make(map[string]any)
	}
	data["event_id"] = uuid.NewString()
	data["timestamp"] = time.Now().UnixMilli()
	r.events.Publish(eventType, data)
}
