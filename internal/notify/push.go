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

// Push delivers the alert to every configured device token through a
// bearer-token push API.
type Push struct {
	cfg    config.PushConfig
	client *http.Client
}

func NewPush(cfg config.PushConfig, client *http.Client) *Push {
	if client == nil {
		client = http.DefaultClient
	}
	return &Push{cfg: cfg, client: client}
}

func (*Push) Name() string { return "push" }

func (p *Push) Send(ctx context.Context, a Alert) error {
	apiURL := strings.TrimSpace(p.cfg.APIURL)
	if apiURL == "" {
		return permanent(errors.New("push api_url empty"))
	}
	if len(p.cfg.DeviceTokens) == 0 {
		return permanent(errors.New("push device_tokens empty"))
	}
	notification, err := RenderPayload(p.cfg.Payload, a.Message())
	if err != nil {
		return permanent(err)
	}

	var errs []error
	for _, token := range p.cfg.DeviceTokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if err := p.sendOne(ctx, apiURL, token, notification); err != nil {
			errs = append(errs, fmt.Errorf("token %s: %w", token, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Push) sendOne(ctx context.Context, apiURL, token string, notification []byte) error {
	body, err := json.Marshal(map[string]any{
		"to":           token,
		"notification": json.RawMessage(notification),
	})
	if err != nil {
		return permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer res.Body.Close()
	return classifyStatus("push", res.StatusCode)
}
