package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CodeByKalvin/Logex/internal/config"
)

func testAlert() Alert {
	return Alert{
		ID:          "a-1",
		Pattern:     "Failed login",
		Severity:    "high",
		File:        "/var/log/auth.log",
		Line:        `Failed password for root from 1.2.3.4`,
		MatchedText: "Failed password",
	}
}

func TestWebhook_SubstitutesAlertMessage(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Get("X-Token")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	w := NewWebhook(config.WebhookConfig{
		Enabled: true,
		URL:     srv.URL,
		Headers: map[string]string{"X-Token": "secret"},
		Payload: map[string]any{"message": "Log monitoring alert! {{alert_message}}"},
	}, srv.Client())

	if err := w.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotHeader != "secret" {
		t.Fatalf("expected custom header, got %q", gotHeader)
	}

	var payload map[string]string
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v\n%s", err, gotBody)
	}
	if !strings.Contains(payload["message"], "Failed password for root") {
		t.Fatalf("alert message not substituted: %q", payload["message"])
	}
	if strings.Contains(payload["message"], "{{alert_message}}") {
		t.Fatalf("placeholder left in payload: %q", payload["message"])
	}
}

func TestWebhook_ErrorClassification(t *testing.T) {
	t.Parallel()

	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	w := NewWebhook(config.WebhookConfig{URL: srv.URL}, srv.Client())

	err := w.Send(context.Background(), testAlert())
	if err == nil || IsPermanent(err) {
		t.Fatalf("5xx should be a retryable error, got %v", err)
	}

	status = http.StatusUnauthorized
	err = w.Send(context.Background(), testAlert())
	if !errors.Is(err, ErrAuthFailed) || !IsPermanent(err) {
		t.Fatalf("401 should be a permanent auth error, got %v", err)
	}

	status = http.StatusBadRequest
	err = w.Send(context.Background(), testAlert())
	if !errors.Is(err, ErrInvalidResponse) || !IsPermanent(err) {
		t.Fatalf("400 should be a permanent error, got %v", err)
	}
}

func TestWebhook_EmptyURLIsPermanent(t *testing.T) {
	t.Parallel()

	w := NewWebhook(config.WebhookConfig{}, nil)
	if err := w.Send(context.Background(), testAlert()); !IsPermanent(err) {
		t.Fatalf("expected permanent error for empty url, got %v", err)
	}
}

func TestRenderPayload_EscapesMessage(t *testing.T) {
	t.Parallel()

	out, err := RenderPayload(
		map[string]any{"body": "{{alert_message}}"},
		"line with \"quotes\"\nand newline",
	)
	if err != nil {
		t.Fatalf("RenderPayload: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("rendered payload is invalid JSON: %v\n%s", err, out)
	}
	if !strings.Contains(decoded["body"], `"quotes"`) {
		t.Fatalf("unexpected body %q", decoded["body"])
	}
}
