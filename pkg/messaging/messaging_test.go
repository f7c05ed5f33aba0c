package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPublisherWrapsEnvelope(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewMemoryBroker()
	pub := NewChannelPublisher(broker, "doctime.events")

	got := make(chan Message, 1)
	require.NoError(t, pub.Subscribe(ctx, func(m Message) error {
		got <- m
		return nil
	}))

	require.NoError(t, pub.Publish(ctx, "case.completed", []byte(`{"case_id":"abc"}`)))

	select {
	case m := <-got:
		assert.Equal(t, "case.completed", m.Type)
		raw, err := json.Marshal(m.Payload)
		require.NoError(t, err)
		assert.JSONEq(t, `{"case_id":"abc"}`, string(raw))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryBrokerIgnoresOtherChannels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewMemoryBroker()
	ch, err := broker.Subscribe(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(ctx, "b", map[string]string{"x": "y"}))

	select {
	case <-ch:
		t.Fatal("unexpected message")
	case <-time.After(50 * time.Millisecond):
	}
	assert.NoError(t, broker.Close())
}
