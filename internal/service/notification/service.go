// Package notification delivers SMS, push and email notices. Every send is
// best-effort from the caller's point of view: errors are returned so the
// caller can surface a warning, but no state change depends on them.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lipanganya/doctime-api/internal/email"
	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/messaging"
	"github.com/lipanganya/doctime-api/pkg/metrics"
	"github.com/lipanganya/doctime-api/pkg/sms"
)

// PushChannel is the broker channel the push gateway consumes.
const PushChannel = "push_notifications"

const pushEventType = "push.send"

type SettingReader interface {
	Enabled(ctx context.Context, key string, fallback bool) bool
}

type Options struct {
	// AlwaysDeliver is set in production or when ENABLE_SMS is set in the
	// environment. Otherwise the ENABLE_SMS setting decides.
	AlwaysDeliver bool
}

type Dispatcher struct {
	sms      sms.Sender
	logOnly  sms.Sender
	settings SettingReader
	push     messaging.Publisher
	email    email.Service
	opts     Options
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewDispatcher(
	smsSender sms.Sender,
	settings SettingReader,
	push messaging.Publisher,
	emailSvc email.Service,
	opts Options,
	log *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		sms:      smsSender,
		logOnly:  sms.NewLogSender(log),
		settings: settings,
		push:     push,
		email:    emailSvc,
		opts:     opts,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

func (d *Dispatcher) smsSender(ctx context.Context) sms.Sender {
	if d.opts.AlwaysDeliver || d.settings.Enabled(ctx, model.SettingEnableSMS, false) {
		return d.sms
	}
	return d.logOnly
}

func (d *Dispatcher) SendSMS(ctx context.Context, to, message string) error {
	_, err := d.DeliverSMS(ctx, to, message)
	return err
}

// DeliverSMS is SendSMS that also reports whether the message reached the
// gateway. It is false without an error when delivery is gated off and the
// message was only logged.
func (d *Dispatcher) DeliverSMS(ctx context.Context, to, message string) (bool, error) {
	res, err := d.smsSender(ctx).Send(ctx, to, message)
	if err != nil {
		d.metrics.SMSSent.WithLabelValues("failed").Inc()
		d.log.Error(err, "failed to send sms", "to", to)
		return false, fmt.Errorf("failed to send sms: %w", err)
	}

	if res.LocalOnly {
		d.metrics.SMSSent.WithLabelValues("logged").Inc()
		return false, nil
	}
	d.metrics.SMSSent.WithLabelValues("sent").Inc()
	d.log.Debug("sms dispatched", "mobile", res.Mobile, "message_id", res.MessageID)
	return true, nil
}

// SendPush publishes a push message for the gateway. Users without a push
// token are skipped silently.
func (d *Dispatcher) SendPush(ctx context.Context, user *model.User, title, body string, data map[string]string) error {
	if user == nil || !user.HasPushToken() {
		d.metrics.PushPublished.WithLabelValues("skipped").Inc()
		return nil
	}

	msg := model.PushMessage{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     *user.PushToken,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: d.now(),
	}
	if err := d.push.Publish(ctx, pushEventType, msg); err != nil {
		d.metrics.PushPublished.WithLabelValues("failed").Inc()
		d.log.Error(err, "failed to publish push notification", "user_id", user.ID.String())
		return fmt.Errorf("failed to publish push notification: %w", err)
	}
	d.metrics.PushPublished.WithLabelValues("published").Inc()
	return nil
}

func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, html string) error {
	if err := d.email.Send(ctx, to, subject, html); err != nil {
		d.metrics.EmailSent.WithLabelValues("failed").Inc()
		d.log.Error(err, "failed to send email", "to", to)
		return err
	}
	d.metrics.EmailSent.WithLabelValues("sent").Inc()
	return nil
}
