package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hakim/scandash/internal/aggregate"
	"github.com/hakim/scandash/internal/models"
)

// NotifyConfig configures where to send completion notifications.
type NotifyConfig struct {
	WebhookURL string // if empty, no notifications
	Timeout    time.Duration
}

// completionPayload is the JSON body posted to the webhook endpoint.
type completionPayload struct {
	ScanID     string            `json:"scan_id"`
	URL        string            `json:"url"`
	Status     models.ScanStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	Total      int               `json:"total"`
	RiskCounts aggregate.Summary `json:"risk_counts"`
	Timestamp  time.Time         `json:"timestamp"`
}

// SendCompletion posts a JSON summary of a terminal scan to the webhook URL.
// Returns nil if WebhookURL is empty (no-op). Non-fatal: errors are returned
// but callers should treat them as warnings.
func (n *NotifyConfig) SendCompletion(ctx context.Context, scan models.Scan) error {
	if n == nil || n.WebhookURL == "" {
		return nil
	}

	summary := aggregate.Aggregate(scan.Findings)
	payload := completionPayload{
		ScanID:     scan.ID,
		URL:        scan.URL,
		Status:     scan.Status,
		Error:      scan.Error,
		Total:      summary.Total(),
		RiskCounts: summary,
		Timestamp:  scan.Timestamp,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshaling payload: %w", err)
	}

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting to %s: %w", n.WebhookURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned non-2xx status %d", resp.StatusCode)
	}

	return nil
}
