// Package notify delivers a run's terminal state to an external webhook,
// adapted from the platform's internal/notifications/webhook.go
// (ApprovalWebhookPayload / WebhookNotifier), generalized from an
// approval-requested event to a run-completed/run-failed event.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stakpak/agent-core/internal/logging"
	"github.com/stakpak/agent-core/pkg/models"
)

// RunWebhookPayload is the JSON body posted to a schedule's notify
// channel when a run reaches a terminal state.
type RunWebhookPayload struct {
	Event        string  `json:"event"`
	RunID        string  `json:"run_id"`
	ScheduleName string  `json:"schedule_name"`
	Status       string  `json:"status"`
	ChatID       *string `json:"chat_id,omitempty"`
	Error        *string `json:"error,omitempty"`
	StartedAt    string  `json:"started_at"`
	StoppedAt    *string `json:"stopped_at,omitempty"`
}

// WebhookNotifier posts run-completion payloads to per-schedule
// webhook URLs, retrying with quadratic backoff.
type WebhookNotifier struct {
	httpClient *http.Client
	maxRetries int
}

// NewWebhookNotifier builds a notifier with a request timeout sized for
// a single attempt; the overall retry loop runs under the caller's
// context.
func NewWebhookNotifier(timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
	}
}

// NotifyRunTerminal posts run's terminal state to webhookURL if sched
// names a notification channel and run reached Completed or Failed. A
// nil/empty channel is a silent no-op, since most schedules don't opt
// into notifications; Cancelled/Skipped runs are never posted since
// they're not the operator-actionable outcomes the channel exists for.
func NotifyRunTerminal(ctx context.Context, notifier *WebhookNotifier, sched models.Schedule, run *models.Run) {
	if sched.NotifyChannel == nil || *sched.NotifyChannel == "" {
		return
	}
	if run.Status != models.RunCompleted && run.Status != models.RunFailed {
		return
	}
	payload := RunWebhookPayload{
		Event:        "run." + string(run.Status),
		RunID:        run.ID,
		ScheduleName: run.ScheduleName,
		Status:       string(run.Status),
		ChatID:       sched.NotifyChatID,
		Error:        run.Error,
		StartedAt:    run.StartedAt.Format(time.RFC3339),
	}
	if run.StoppedAt != nil {
		stopped := run.StoppedAt.Format(time.RFC3339)
		payload.StoppedAt = &stopped
	}
	if err := notifier.sendWithRetry(ctx, *sched.NotifyChannel, payload); err != nil {
		logging.Warn("webhook notification failed for run %q (schedule %q): %v", run.ID, sched.Name, err)
	}
}

func (w *WebhookNotifier) sendWithRetry(ctx context.Context, webhookURL string, payload RunWebhookPayload) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		if err := w.send(ctx, webhookURL, payload); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < w.maxRetries {
			backoff := time.Duration(attempt*attempt) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", w.maxRetries, lastErr)
}

func (w *WebhookNotifier) send(ctx context.Context, webhookURL string, payload RunWebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "agent-core-webhook/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
