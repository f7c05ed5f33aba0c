package messaging

import (
	"context"
	"encoding/json"
)

// ChannelPublisher publishes every event to one fixed channel wrapped in a
// Message envelope.
type ChannelPublisher struct {
	broker  Broker
	channel string
}

func NewChannelPublisher(broker Broker, channel string) *ChannelPublisher {
	return &ChannelPublisher{broker: broker, channel: channel}
}

func (p *ChannelPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	if raw, ok := payload.([]byte); ok {
		payload = json.RawMessage(raw)
	}
	return p.broker.Publish(ctx, p.channel, Message{Type: eventType, Payload: payload})
}

// Subscribe decodes envelopes from the channel and hands them to handler
// until ctx is done. Messages that fail to decode are skipped.
func (p *ChannelPublisher) Subscribe(ctx context.Context, handler func(Message) error) error {
	msgChan, err := p.broker.Subscribe(ctx, p.channel)
	if err != nil {
		return err
	}

	go func() {
		for raw := range msgChan {
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			_ = handler(msg)
		}
	}()

	return nil
}
