package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lipanganya/doctime-api/pkg/logger"
)

func newGateway(t *testing.T, reply string, got *sendRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, sendPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendSuccessNumericCode(t *testing.T) {
	var got sendRequest
	srv := newGateway(t, `{"responses":[{"response-code":200,"response-description":"Success","mobile":254712345678,"messageid":8290842,"networkid":"1"}]}`, &got)

	client := NewAdvantaClient(Config{BaseURL: srv.URL, APIKey: "key", PartnerID: "42"})
	res, err := client.Send(context.Background(), "0712 345 678", "hello")

	require.NoError(t, err)
	assert.Equal(t, "254712345678", res.Mobile)
	assert.Equal(t, "8290842", res.MessageID)
	assert.Equal(t, sendRequest{APIKey: "key", PartnerID: "42", Message: "hello", Shortcode: DefaultShortcode, Mobile: "254712345678"}, got)
}

func TestSendSuccessStringCode(t *testing.T) {
	srv := newGateway(t, `{"responses":[{"response-code":"200","response-description":"Queued"}]}`, nil)

	res, err := NewAdvantaClient(Config{BaseURL: srv.URL}).Send(context.Background(), "254712345678", "x")

	require.NoError(t, err)
	assert.Equal(t, "unknown", res.MessageID)
}

func TestSendGatewayRejects(t *testing.T) {
	srv := newGateway(t, `{"responses":[{"response-code":1004,"response-description":"Low bulk credits"}]}`, nil)

	_, err := NewAdvantaClient(Config{BaseURL: srv.URL}).Send(context.Background(), "254712345678", "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Low bulk credits")
}

func TestSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAdvantaClient(Config{BaseURL: srv.URL}).Send(context.Background(), "254712345678", "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestLogSenderNeverFails(t *testing.T) {
	res, err := NewLogSender(logger.Nop()).Send(context.Background(), "0712345678", "x")

	require.NoError(t, err)
	assert.True(t, res.LocalOnly)
	assert.Equal(t, "254712345678", res.Mobile)
}
