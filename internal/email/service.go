// Package email sends transactional mail over SMTP.
package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/lipanganya/doctime-api/pkg/logger"
)

const fromName = "Doc Time"

type Service interface {
	Send(ctx context.Context, to, subject, html string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialer is the part of gomail.Dialer the service needs.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPService struct {
	from   string
	dialer dialer
}

func NewSMTPService(cfg Config) *SMTPService {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPService{
		from:   from,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPService) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// LogService only logs outgoing mail. Used when no SMTP host is configured.
type LogService struct {
	log *logger.Logger
}

func NewLogService(log *logger.Logger) *LogService {
	return &LogService{log: log}
}

func (s *LogService) Send(_ context.Context, to, subject, _ string) error {
	s.log.Info("email not sent (smtp not configured)", "to", to, "subject", subject)
	return nil
}

// New picks the SMTP service when a host is configured.
func New(cfg Config, log *logger.Logger) Service {
	if cfg.Host == "" {
		return NewLogService(log)
	}
	return NewSMTPService(cfg)
}
