// Package notify delivers outbound mail through an HTTP mail API, with a
// log-only fallback when no API is configured.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MailNotifier posts messages to an HTTP mail-delivery API. Delivery is
// best-effort; the caller never awaits a delivery confirmation.
type MailNotifier struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewMailNotifier builds a notifier from configuration.
func NewMailNotifier(endpoint, apiKey, from string) *MailNotifier {
	return &MailNotifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type mailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notify posts one message to the mail API.
func (n *MailNotifier) Notify(ctx context.Context, destination, subject, body string) error {
	if n.endpoint == "" {
		return fmt.Errorf("mail notifier misconfigured: endpoint is empty")
	}

	payload, err := json.Marshal(mailPayload{
		From:    n.from,
		To:      destination,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mail API error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}

// LogNotifier logs messages instead of delivering them. It stands in when
// no mail API is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the would-be delivery.
func (n *LogNotifier) Notify(_ context.Context, destination, subject, body string) error {
	n.logger.Info("notification (log-only delivery)",
		zap.String("to", destination),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)))
	return nil
}
