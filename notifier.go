package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// notifyTimeout bounds a single webhook delivery attempt.
const notifyTimeout = 5 * time.Second

// Notifier delivers terminal-state notifications to a configured
// webhook. Delivery is best-effort, single attempt: failures are
// logged and swallowed, and can never reach the settlement or response
// path.
type Notifier struct {
	httpClient *http.Client
}

// NotifierOption configures the notifier.
type NotifierOption func(*Notifier)

// WithNotifierHTTPClient overrides the HTTP client, e.g. for tests.
func WithNotifierHTTPClient(client *http.Client) NotifierOption {
	return func(n *Notifier) {
		n.httpClient = client
	}
}

// NewNotifier creates a notifier with the default 5s delivery timeout.
func NewNotifier(opts ...NotifierOption) *Notifier {
	n := &Notifier{
		httpClient: &http.Client{Timeout: notifyTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// webhookBody is the JSON body POSTed to the webhook target.
type webhookBody struct {
	TaskID  string          `json:"taskId"`
	State   TerminalState   `json:"state"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notify posts the terminal state to the webhook. It never returns the
// delivery outcome to the caller; a nil or empty config is a no-op.
func (n *Notifier) Notify(ctx context.Context, config *WebhookConfig, taskID string, state TerminalState, payload json.RawMessage) {
	if config == nil || config.URL == "" {
		return
	}

	body, err := json.Marshal(webhookBody{TaskID: taskID, State: state, Payload: payload})
	if err != nil {
		log.Printf("payments: webhook body marshal failed for task %s: %v", taskID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))
	if err != nil {
		log.Printf("payments: webhook request build failed for task %s: %v", taskID, err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	applyWebhookAuth(req, config)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Printf("payments: webhook delivery failed for task %s: %v", taskID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("payments: webhook for task %s returned %d", taskID, resp.StatusCode)
	}
}

func applyWebhookAuth(req *http.Request, config *WebhookConfig) {
	switch config.Auth {
	case WebhookAuthBearer:
		req.Header.Set("Authorization", "Bearer "+config.Token)
	case WebhookAuthBasic:
		req.SetBasicAuth(config.Username, config.Password)
	case WebhookAuthCustom:
		for k, v := range config.Headers {
			req.Header.Set(k, v)
		}
	}
}
