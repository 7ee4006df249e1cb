package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Steiner-254/subsentry/internal/state"
	"github.com/Steiner-254/subsentry/pkg/models"
)

// payload is the webhook body. The shape follows the common Discord-style
// sink: a content line plus an embed with structured fields.
type payload struct {
	Content  string  `json:"content"`
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title     string  `json:"title"`
	Color     int     `json:"color"`
	Fields    []field `json:"fields,omitempty"`
	Timestamp string  `json:"timestamp"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Notifier delivers lifecycle events to a webhook sink. Delivery is attempted
// once per event with a bounded timeout; failures are appended to the event
// log and swallowed. A notifier with no webhook configured logs events
// locally and nothing else.
type Notifier struct {
	webhookURL string
	username   string
	client     *http.Client
	eventLog   *state.EventLog
	logger     *logrus.Logger
}

func NewNotifier(cfg models.NotifyConfig, eventLog *state.EventLog, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		username:   cfg.Username,
		client:     &http.Client{Timeout: timeout},
		eventLog:   eventLog,
		logger:     logger,
	}
}

// Notify delivers one event. It always returns nil error semantics to the
// pipeline: any delivery failure is logged durably and the loop moves on.
func (n *Notifier) Notify(ctx context.Context, event models.NotificationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	msg := event.Message()
	n.logger.WithFields(logrus.Fields{
		"domain":     event.Domain,
		"kind":       string(event.Kind),
		"generation": event.Generation,
	}).Info(msg)

	if n.webhookURL == "" {
		return
	}
	if err := n.deliver(ctx, event, msg); err != nil {
		n.logger.Warnf("Notification delivery failed for %s: %v", event.Domain, err)
		n.eventLog.Append(event.Domain, "notification_failure",
			fmt.Sprintf("event=%s error=%q", event.Kind, err.Error()))
	}
}

func (n *Notifier) deliver(ctx context.Context, event models.NotificationEvent, msg string) error {
	body, err := json.Marshal(buildPayload(event, msg, n.username))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}

func buildPayload(event models.NotificationEvent, msg, username string) payload {
	color := 0x3498db
	if event.Kind == models.EventToolError {
		color = 0xff0000
	}

	fields := []field{
		{Name: "Domain", Value: event.Domain, Inline: true},
	}
	if event.Kind == models.EventScanResults {
		fields = append(fields, field{Name: "Counts", Value: event.Counts.String(), Inline: true})
	}
	if event.Count > 0 {
		fields = append(fields, field{Name: "Count", Value: fmt.Sprintf("%d", event.Count), Inline: true})
	}

	return payload{
		Content:  msg,
		Username: username,
		Embeds: []embed{{
			Title:     string(event.Kind),
			Color:     color,
			Fields:    fields,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		}},
	}
}
