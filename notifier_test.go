package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotifierPostsTerminalState(t *testing.T) {
	var gotBody webhookBody
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier()
	n.Notify(context.Background(), &WebhookConfig{
		URL:   server.URL,
		Auth:  WebhookAuthBearer,
		Token: "hook-secret",
	}, "task-1", StateCompleted, json.RawMessage(`{"out":1}`))

	if gotBody.TaskID != "task-1" || gotBody.State != StateCompleted {
		t.Errorf("unexpected body %+v", gotBody)
	}
	if string(gotBody.Payload) != `{"out":1}` {
		t.Errorf("unexpected payload %s", gotBody.Payload)
	}
	if gotAuth != "Bearer hook-secret" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
}

func TestNotifierCustomHeaders(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Hook-Key")
	}))
	defer server.Close()

	n := NewNotifier()
	n.Notify(context.Background(), &WebhookConfig{
		URL:     server.URL,
		Auth:    WebhookAuthCustom,
		Headers: map[string]string{"X-Hook-Key": "k1"},
	}, "task-1", StateFailed, nil)

	if gotHeader != "k1" {
		t.Errorf("expected custom header, got %q", gotHeader)
	}
}

func TestNotifierNilConfigIsNoop(t *testing.T) {
	n := NewNotifier()
	n.Notify(context.Background(), nil, "task-1", StateCompleted, nil)
	n.Notify(context.Background(), &WebhookConfig{}, "task-1", StateCompleted, nil)
}

func TestNotifierSwallowsDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	server.Close() // refuse connections

	n := NewNotifier()
	// Must not panic or block; failures are logged only.
	n.Notify(context.Background(), &WebhookConfig{URL: server.URL}, "task-1", StateCompleted, nil)
}
