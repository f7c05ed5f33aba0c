// Package sms sends text messages through the Advanta bulk SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lipanganya/doctime-api/pkg/circuitbreaker"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/phone"
)

const (
	DefaultBaseURL   = "https://quicksms.advantasms.com"
	DefaultShortcode = "WOLFGANG"
	DefaultTimeout   = 10 * time.Second

	sendPath = "/api/services/sendsms/"
)

// Result describes an accepted message.
type Result struct {
	MessageID string `json:"message_id"`
	Mobile    string `json:"mobile"`
	NetworkID string `json:"network_id,omitempty"`
	LocalOnly bool   `json:"local_only,omitempty"`
}

// Sender delivers a single SMS.
type Sender interface {
	Send(ctx context.Context, to, message string) (*Result, error)
}

type Config struct {
	BaseURL   string
	APIKey    string
	PartnerID string
	Shortcode string
	Timeout   time.Duration
}

type AdvantaClient struct {
	cfg    Config
	client *http.Client
	cb     *circuitbreaker.CircuitBreaker
}

func NewAdvantaClient(cfg Config) *AdvantaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Shortcode == "" {
		cfg.Shortcode = DefaultShortcode
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &AdvantaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "advanta-sms",
			MaxFailures: 5,
			Timeout:     time.Minute,
		}),
	}
}

type sendRequest struct {
	APIKey    string `json:"apikey"`
	PartnerID string `json:"partnerID"`
	Message   string `json:"message"`
	Shortcode string `json:"shortcode"`
	Mobile    string `json:"mobile"`
}

type sendResponse struct {
	Responses []struct {
		ResponseCode        interface{} `json:"response-code"`
		ResponseDescription string      `json:"response-description"`
		MessageID           interface{} `json:"messageid"`
		NetworkID           interface{} `json:"networkid"`
		Mobile              interface{} `json:"mobile"`
	} `json:"responses"`
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

func (c *AdvantaClient) Send(ctx context.Context, to, message string) (*Result, error) {
	mobile := phone.Normalize(to)
	if mobile == phone.CountryCode {
		return nil, fmt.Errorf("invalid phone number: %q", to)
	}

	var result *Result
	err := c.cb.Execute(func() error {
		var sendErr error
		result, sendErr = c.send(ctx, mobile, message)
		return sendErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *AdvantaClient) send(ctx context.Context, mobile, message string) (*Result, error) {
	body, err := json.Marshal(sendRequest{
		APIKey:    c.cfg.APIKey,
		PartnerID: c.cfg.PartnerID,
		Message:   message,
		Shortcode: c.cfg.Shortcode,
		Mobile:    mobile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sms gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read sms response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode sms response: %w", err)
	}

	if len(parsed.Responses) > 0 {
		r := parsed.Responses[0]
		if codeIs200(r.ResponseCode) || strings.Contains(strings.ToLower(r.ResponseDescription), "success") {
			return &Result{
				MessageID: stringOr(r.MessageID, "unknown"),
				Mobile:    mobile,
				NetworkID: stringOr(r.NetworkID, "unknown"),
			}, nil
		}
		desc := r.ResponseDescription
		if desc == "" {
			desc = "unknown error"
		}
		return nil, fmt.Errorf("sms api error: %s", desc)
	}

	if parsed.Success || parsed.Status == "success" {
		return &Result{MessageID: "unknown", Mobile: mobile}, nil
	}
	return nil, fmt.Errorf("unexpected sms response: %s", strings.TrimSpace(string(raw)))
}

// codeIs200 accepts both "200" and 200; the gateway is not consistent.
func codeIs200(v interface{}) bool {
	switch code := v.(type) {
	case float64:
		return code == 200
	case string:
		return strings.TrimSpace(code) == "200"
	default:
		return false
	}
}

func stringOr(v interface{}, fallback string) string {
	switch s := v.(type) {
	case string:
		if s != "" {
			return s
		}
	case float64:
		return fmt.Sprintf("%.0f", s)
	}
	return fallback
}

// LogSender only logs the message. Used outside production unless SMS is
// explicitly enabled.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, to, message string) (*Result, error) {
	mobile := phone.Normalize(to)
	s.log.Info("sms not sent (delivery disabled)", "mobile", mobile, "message", message)
	return &Result{MessageID: "local-dev-no-sms", Mobile: mobile, LocalOnly: true}, nil
}
