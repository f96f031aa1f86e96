package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Webhook posts events to a Slack, Teams, or generic HTTP endpoint.
type Webhook struct {
	kind   string
	url    string
	client *http.Client
}

// NewWebhook returns a webhook target. kind is one of: slack | teams | http.
func NewWebhook(kind, url string) *Webhook {
	return &Webhook{
		kind:   kind,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Target.
func (w *Webhook) Name() string { return "webhook:" + w.kind }

// Send implements Target.
func (w *Webhook) Send(ctx context.Context, ev Event) error {
	var payload any
	switch w.kind {
	case "slack":
		payload = map[string]string{
			"text": fmt.Sprintf("*%s* %s", stateLabel(ev.State), ev.Message),
		}
	case "teams":
		payload = map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": stateColor(ev.State),
			"summary":    "hive " + ev.HiveID,
			"title":      fmt.Sprintf("Hivewatch: hive %s %s", ev.HiveID, ev.State),
			"text":       teamsText(ev),
		}
	case "http":
		payload = map[string]any{"event": ev}
	default:
		return fmt.Errorf("unknown webhook type %q", w.kind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return w.post(ctx, body)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func teamsText(ev Event) string {
	if len(ev.Reasons) == 0 {
		return ev.Message
	}
	return "- " + strings.Join(ev.Reasons, "\n- ")
}

func stateLabel(state string) string {
	if state == StateFiring {
		return "[ALERT]"
	}
	return "[RESOLVED]"
}

func stateColor(state string) string {
	if state == StateFiring {
		return "FFAB40"
	}
	return "3FB950"
}
