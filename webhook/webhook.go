package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event types.
const (
	EventCompleted = "scrape.completed"
	EventEmpty     = "scrape.empty"
	EventFailed    = "scrape.failed"
)

// SignatureHeader carries "sha256=<hex>" when a secret is configured.
const SignatureHeader = "X-Shelfscan-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	JobID     string `json:"job_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notifier delivers events with retries.
type Notifier struct {
	Client *http.Client

	// Delays are waited before each attempt; the first is usually 0.
	Delays []time.Duration
}

// DefaultNotifier retries after 1s, 5s and 30s.
var DefaultNotifier = &Notifier{
	Client: &http.Client{Timeout: 10 * time.Second},
	Delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
}

// Deliver sends one event synchronously.
func (n *Notifier) Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Shelfscan-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Send delivers event, retrying per Delays. It blocks until delivery
// succeeds or every attempt has failed.
func (n *Notifier) Send(url, secret string, event *Event) error {
	var lastErr error
	for attempt, delay := range n.Delays {
		if delay > 0 {
			time.Sleep(delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = n.Deliver(ctx, url, secret, event)
		cancel()
		if lastErr == nil {
			slog.Info("webhook delivered", "url", url, "event", event.Type, "job_id", event.JobID, "attempt", attempt+1)
			return nil
		}
		slog.Warn("webhook delivery failed", "url", url, "event", event.Type, "job_id", event.JobID,
			"attempt", attempt+1, "error", lastErr)
	}
	slog.Error("webhook delivery exhausted all retries", "url", url, "event", event.Type, "job_id", event.JobID)
	return lastErr
}

// DeliverAsync runs Send on DefaultNotifier in the background.
func DeliverAsync(url, secret string, event *Event) {
	go func() { _ = DefaultNotifier.Send(url, secret, event) }()
}
