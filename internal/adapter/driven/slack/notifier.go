// Package slack implements the Notifier port against a Slack-compatible
// webhook endpoint.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Notifier = (*Notifier)(nil)

// Notifier posts structured messages to a webhook and returns the delivery
// token the endpoint responds with. An empty token means the message was not
// delivered.
type Notifier struct {
	webhookURL string
	http       *http.Client
}

// NewNotifier creates a webhook-backed notifier.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

// NewNotifierWithHTTPClient creates a Notifier with a custom http.Client,
// for tests against an httptest server.
func NewNotifierWithHTTPClient(webhookURL string, httpClient *http.Client) *Notifier {
	return &Notifier{webhookURL: webhookURL, http: httpClient}
}

type webhookPayload struct {
	Channel string        `json:"channel,omitempty"`
	Text    string        `json:"text"`
	Items   []webhookItem `json:"items,omitempty"`
}

type webhookItem struct {
	DeploymentID int64  `json:"deployment_id"`
	Commit       string `json:"commit"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Link         string `json:"link,omitempty"`
}

type webhookResponse struct {
	OK bool   `json:"ok"`
	TS string `json:"ts"`
}

// SendReminder delivers a reminder about unresolved deployments.
func (n *Notifier) SendReminder(ctx context.Context, msg model.ReminderMessage) (string, error) {
	payload := webhookPayload{
		Channel: msg.Channel,
		Text: fmt.Sprintf("%d deployment(s) of %s/%s still lack a verified review",
			len(msg.Items), msg.Team, msg.Application),
	}
	for _, item := range msg.Items {
		payload.Items = append(payload.Items, webhookItem{
			DeploymentID: item.DeploymentID,
			Commit:       item.CommitSHA,
			Name:         item.DisplayName,
			Status:       string(item.Status),
			Link:         item.Link,
		})
	}

	return n.post(ctx, payload)
}

// SendAlert delivers a single alert raised during sync.
func (n *Notifier) SendAlert(ctx context.Context, app model.Application, alert model.Alert) (string, error) {
	payload := webhookPayload{
		Channel: app.ReminderChannel,
		Text:    fmt.Sprintf("%s: %s (%s/%s)", alert.Kind, alert.Detail, app.Team, app.Name),
	}
	return n.post(ctx, payload)
}

func (n *Notifier) post(ctx context.Context, payload webhookPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	var wr webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}
	if !wr.OK {
		return "", nil
	}
	return wr.TS, nil
}
