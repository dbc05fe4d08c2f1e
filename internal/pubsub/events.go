// Package pubsub provides a small generic publish/subscribe broker used to
// announce registry changes and log entries to interested listeners.
package pubsub

import (
	"context"
	"time"
)

// EventType describes what happened to the payload.
type EventType string

const (
	// CreatedEvent announces a new entry (a registered option, a loaded plugin, a log line).
	CreatedEvent EventType = "created"
	// ReplacedEvent announces that an existing entry was overridden by a new owner.
	ReplacedEvent EventType = "replaced"
	// RemovedEvent announces that an entry went away.
	RemovedEvent EventType = "removed"
)

// Event is a published payload stamped with its type and publish time.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber hands out event channels.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

// Publisher accepts events.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
