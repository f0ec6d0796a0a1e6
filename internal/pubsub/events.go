// Package pubsub provides a generic publish/subscribe event system.
// Containers use it for their change stream and the logger uses it to
// fan log lines out to UI listeners.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	CreatedEvent  EventType = "created"
	UpdatedEvent  EventType = "updated"  // merged into the existing value
	ReplacedEvent EventType = "replaced" // value overwritten wholesale
	ResetEvent    EventType = "reset"    // value restored to its initial mapping
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Seq       uint64
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
