package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"bounty-watch/leadscout/internal/models"
)

const snippetLength = 200

// WebhookNotifier delivers new-lead alerts to a chat webhook accepting a
// Discord-style {"content": ...} JSON body. Delivery is best-effort: the
// caller logs and swallows any error, and the request is bounded by the
// client timeout so it can never stall an ingestion batch.
type WebhookNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(webhookURL string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Notify posts a human-readable summary of a freshly discovered lead.
func (n *WebhookNotifier) Notify(ctx context.Context, lead *models.Lead) error {
	if n.webhookURL == "" {
		log.Debug().Str("external_id", lead.ExternalID).Msg("No webhook configured, skipping notification")
		return nil
	}

	payload := webhookPayload{Content: formatAlert(lead)}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivering webhook: %w", err)
	}
	defer resp.Body.Close()

	// Response body is ignored beyond the status class.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}

	log.Debug().
		Str("external_id", lead.ExternalID).
		Int("status", resp.StatusCode).
		Msg("Webhook notification delivered")
	return nil
}

// formatAlert renders the alert message: title, trigger keyword, permalink,
// and a snippet of the post body.
func formatAlert(lead *models.Lead) string {
	snippet := lead.Body
	if runes := []rune(snippet); len(runes) > snippetLength {
		snippet = string(runes[:snippetLength]) + "…"
	}

	msg := fmt.Sprintf("🚨 **NEW LEAD DETECTED** 🚨\n**%s**", lead.Title)
	if lead.MatchedKeyword != "" {
		msg += fmt.Sprintf("\n**Keyword:** `%s`", lead.MatchedKeyword)
	}
	msg += fmt.Sprintf("\n**Link:** %s", lead.SourceURL)
	if snippet != "" {
		msg += "\n" + snippet
	}
	return msg
}
