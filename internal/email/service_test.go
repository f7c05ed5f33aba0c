package email

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/lipanganya/doctime-api/pkg/logger"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSMTPServiceBuildsMessage(t *testing.T) {
	d := &captureDialer{}
	svc := &SMTPService{from: "noreply@doctime.app", dialer: d}

	require.NoError(t, svc.Send(context.Background(), "dr@example.com", "Welcome", "<p>hi</p>"))
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{`"Doc Time" <noreply@doctime.app>`}, m.GetHeader("From"))
	assert.Equal(t, []string{"dr@example.com"}, m.GetHeader("To"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<p>hi</p>")
}

func TestSMTPServiceWrapsDialError(t *testing.T) {
	svc := &SMTPService{from: "a@b.c", dialer: &captureDialer{err: errors.New("refused")}}

	err := svc.Send(context.Background(), "x@y.z", "s", "b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestNewFallsBackToLog(t *testing.T) {
	svc := New(Config{}, logger.Nop())

	_, ok := svc.(*LogService)
	assert.True(t, ok)
	assert.NoError(t, svc.Send(context.Background(), "x@y.z", "s", "b"))
}
