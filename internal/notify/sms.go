// Package notify sends SMS messages, one-time passwords and order receipt
// e-mails.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/config"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sms gateway returned %d: %s", e.Code, e.Body)
}

// HTTPSMS posts messages to a JSON SMS gateway.
type HTTPSMS struct {
	url    string
	apiKey string
	sender string
	client *http.Client
}

type smsPayload struct {
	To      string `json:"to"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// NewSMSSender returns the HTTP gateway sender, or a sender that only logs
// when no gateway URL is configured.
func NewSMSSender(cfg config.SMSConfig, log *zap.Logger) SMSSender {
	if cfg.GatewayURL == "" {
		return logSMS{log: log}
	}
	return &HTTPSMS{
		url:    cfg.GatewayURL,
		apiKey: cfg.APIKey,
		sender: cfg.SenderID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSMS) Send(ctx context.Context, to, message string) error {
	body, err := json.Marshal(smsPayload{To: to, Sender: s.sender, Message: message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type logSMS struct{ log *zap.Logger }

func (l logSMS) Send(_ context.Context, to, message string) error {
	if l.log != nil {
		l.log.Info("sms gateway not configured; message dropped", zap.String("to", to), zap.Int("length", len(message)))
	}
	return nil
}
