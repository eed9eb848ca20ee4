package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/CodeByKalvin/Logex/internal/config"
)

// Webhook POSTs the rendered payload template to a configured URL.
type Webhook struct {
	cfg    config.WebhookConfig
	client *http.Client
}

func NewWebhook(cfg config.WebhookConfig, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{cfg: cfg, client: client}
}

func (*Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, a Alert) error {
	url := strings.TrimSpace(w.cfg.URL)
	if url == "" {
		return permanent(errors.New("webhook url empty"))
	}
	body, err := RenderPayload(w.cfg.Payload, a.Message())
	if err != nil {
		return permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer res.Body.Close()
	return classifyStatus("webhook", res.StatusCode)
}

// RenderPayload substitutes {{alert_message}} inside the JSON-encoded
// payload template. The message is inserted JSON-escaped so arbitrary
// log content cannot break the template.
func RenderPayload(tpl map[string]any, message string) ([]byte, error) {
	if len(tpl) == 0 {
		tpl = map[string]any{"message": "{{alert_message}}"}
	}
	raw, err := json.Marshal(tpl)
	if err != nil {
		return nil, err
	}
	quoted, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}
	escaped := string(quoted[1 : len(quoted)-1])
	return []byte(strings.ReplaceAll(string(raw), "{{alert_message}}", escaped)), nil
}

// classifyStatus maps an HTTP response code to a delivery error: 2xx is
// success, auth rejections and other 4xx are permanent, everything else
// is retryable.
func classifyStatus(channel string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return permanent(fmt.Errorf("%w: %s http %d", ErrAuthFailed, channel, code))
	case code >= 400 && code < 500:
		return permanent(fmt.Errorf("%w: %s http %d", ErrInvalidResponse, channel, code))
	default:
		return fmt.Errorf("%w: %s http %d", ErrInvalidResponse, channel, code)
	}
}
