// Package webhook delivers notifications via HTTP POST to a gateway endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
	"github.com/afikmenashe/campus-alert/internal/notification"
)

// Payload is the JSON body posted to the webhook.
type Payload struct {
	EmergencyID   string `json:"emergency_id"`
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
	Address       string `json:"address"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	Kind          string `json:"kind"`
	Timestamp     string `json:"timestamp"`
}

// Sender implements webhook delivery.
type Sender struct {
	url        string
	httpClient *http.Client
}

// NewSender creates a webhook sender posting to url. When url is empty the
// payload address itself must be an HTTP(S) URL.
func NewSender(url string) *Sender {
	return NewSenderWithClient(url, &http.Client{Timeout: 30 * time.Second})
}

// NewSenderWithClient creates a webhook sender with a custom HTTP client.
func NewSenderWithClient(url string, client *http.Client) *Sender {
	return &Sender{url: url, httpClient: client}
}

// Type returns the channel name this sender handles.
func (s *Sender) Type() string {
	return "webhook"
}

// IsValidURL checks if a string is an HTTP/HTTPS URL.
func IsValidURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Send posts the payload as JSON. A guardian address that is itself a URL
// takes precedence over the configured endpoint.
func (s *Sender) Send(ctx context.Context, p notification.Payload) error {
	target := s.url
	if IsValidURL(p.Address) {
		target = p.Address
	}
	if target == "" {
		return retry.Permanent(fmt.Errorf("webhook URL is required"))
	}
	if !IsValidURL(target) {
		return retry.Permanent(fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", target))
	}

	data, err := json.Marshal(Payload{
		EmergencyID:   p.EmergencyID,
		RecipientID:   p.RecipientID,
		RecipientName: p.RecipientName,
		Address:       p.Address,
		Subject:       p.Subject,
		Body:          p.Body,
		Kind:          string(p.Kind),
		Timestamp:     p.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
