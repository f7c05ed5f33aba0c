package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/messaging"
	"github.com/lipanganya/doctime-api/pkg/metrics"
	"github.com/lipanganya/doctime-api/pkg/sms"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, message string) (*sms.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, to+": "+message)
	return &sms.Result{MessageID: "1", Mobile: to}, nil
}

type fakeSettings map[string]bool

func (f fakeSettings) Enabled(_ context.Context, key string, fallback bool) bool {
	if v, ok := f[key]; ok {
		return v
	}
	return fallback
}

type fakePublisher struct {
	events []messaging.Message
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, messaging.Message{Type: eventType, Payload: payload})
	return nil
}

type fakeEmail struct {
	to  []string
	err error
}

func (f *fakeEmail) Send(_ context.Context, to, _, _ string) error {
	f.to = append(f.to, to)
	return f.err
}

func newDispatcher(sender *fakeSender, settings fakeSettings, pub *fakePublisher, opts Options) (*Dispatcher, *metrics.Metrics) {
	m := metrics.Nop()
	return NewDispatcher(sender, settings, pub, &fakeEmail{}, opts, logger.Nop(), m), m
}

func TestSendSMSOnlyLogsWhenDisabled(t *testing.T) {
	sender := &fakeSender{}
	d, m := newDispatcher(sender, fakeSettings{}, &fakePublisher{}, Options{})

	require.NoError(t, d.SendSMS(context.Background(), "0712345678", "hi"))

	assert.Empty(t, sender.sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SMSSent.WithLabelValues("logged")))
}

func TestDeliverSMSReportsLoggedMessagesAsUndelivered(t *testing.T) {
	d, _ := newDispatcher(&fakeSender{}, fakeSettings{}, &fakePublisher{}, Options{})
	delivered, err := d.DeliverSMS(context.Background(), "0712345678", "hi")
	require.NoError(t, err)
	assert.False(t, delivered)

	d, _ = newDispatcher(&fakeSender{}, fakeSettings{}, &fakePublisher{}, Options{AlwaysDeliver: true})
	delivered, err = d.DeliverSMS(context.Background(), "0712345678", "hi")
	require.NoError(t, err)
	assert.True(t, delivered)
}

func TestSendSMSDeliversWhenSettingEnabled(t *testing.T) {
	sender := &fakeSender{}
	d, m := newDispatcher(sender, fakeSettings{model.SettingEnableSMS: true}, &fakePublisher{}, Options{})

	require.NoError(t, d.SendSMS(context.Background(), "254712345678", "hi"))

	assert.Equal(t, []string{"254712345678: hi"}, sender.sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SMSSent.WithLabelValues("sent")))
}

func TestSendSMSFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("gateway down")}
	d, m := newDispatcher(sender, fakeSettings{}, &fakePublisher{}, Options{AlwaysDeliver: true})

	err := d.SendSMS(context.Background(), "254712345678", "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway down")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SMSSent.WithLabelValues("failed")))
}

func TestSendPush(t *testing.T) {
	pub := &fakePublisher{}
	d, m := newDispatcher(&fakeSender{}, fakeSettings{}, pub, Options{})
	token := "ExponentPushToken[abc]"
	user := &model.User{Base: model.Base{ID: uuid.New()}, PushToken: &token}

	require.NoError(t, d.SendPush(context.Background(), user, "Case auto-completed", "body", map[string]string{"case_id": "1"}))

	require.Len(t, pub.events, 1)
	msg, ok := pub.events[0].Payload.(model.PushMessage)
	require.True(t, ok)
	assert.Equal(t, token, msg.Token)
	assert.Equal(t, user.ID, msg.UserID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PushPublished.WithLabelValues("published")))
}

func TestSendPushSkipsUsersWithoutToken(t *testing.T) {
	pub := &fakePublisher{}
	d, _ := newDispatcher(&fakeSender{}, fakeSettings{}, pub, Options{})

	require.NoError(t, d.SendPush(context.Background(), &model.User{}, "t", "b", nil))
	assert.Empty(t, pub.events)
}

func TestSendEmail(t *testing.T) {
	mail := &fakeEmail{}
	d := NewDispatcher(&fakeSender{}, fakeSettings{}, &fakePublisher{}, mail, Options{}, logger.Nop(), metrics.Nop())

	require.NoError(t, d.SendEmail(context.Background(), "dr@example.com", "Hello", "<p>hi</p>"))
	assert.Equal(t, []string{"dr@example.com"}, mail.to)
}
