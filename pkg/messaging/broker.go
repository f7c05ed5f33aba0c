// Package messaging carries case events and push requests from the backend to
// consumers outside the process.
package messaging

import (
	"context"
)

// Broker moves JSON-encoded messages over named channels. Redis pub/sub backs
// it in deployments; MemoryBroker stands in when Redis is unreachable.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe delivers raw payloads until ctx is done or the broker closes.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher is what services see: an event type and a payload, with the
// channel fixed by the implementation.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// Message is the envelope written to a channel.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
