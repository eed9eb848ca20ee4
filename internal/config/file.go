package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/CodeByKalvin/Logex/internal/pattern"
)

// ErrConfigInvalid marks a monitor config file that failed parsing or
// validation. The previous configuration stays active when a reload
// hits it.
var ErrConfigInvalid = errors.New("invalid configuration")

// AlertMethods is the closed set of delivery channels.
var AlertMethods = []string{"console", "email", "webhook", "push"}

// File is the on-disk JSON schema of the monitor configuration.
type File struct {
	LogFiles       []string            `json:"log_files"`
	Patterns       []PatternConfig     `json:"patterns"`
	Email          EmailConfig         `json:"email"`
	Webhook        WebhookConfig       `json:"webhook"`
	Push           PushConfig          `json:"push"`
	SeverityLevels map[string][]string `json:"severity_levels"`
}

type PatternConfig struct {
	Name         string   `json:"name"`
	Regex        string   `json:"regex"`
	Severity     string   `json:"severity"`
	AlertMethods []string `json:"alert_methods"`
	MatchType    string   `json:"match_type"`
	Context      *int     `json:"context"`
}

type EmailConfig struct {
	Enabled      bool     `json:"enabled"`
	SMTPServer   string   `json:"smtp_server"`
	SMTPPort     int      `json:"smtp_port"`
	SMTPUser     string   `json:"smtp_user"`
	SMTPPassword string   `json:"smtp_password"`
	FromEmail    string   `json:"from_email"`
	ToEmail      []string `json:"to_email"`
}

type WebhookConfig struct {
	Enabled bool              `json:"enabled"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Payload map[string]any    `json:"payload"`
}

type PushConfig struct {
	Enabled      bool           `json:"enabled"`
	APIURL       string         `json:"api_url"`
	APIKey       string         `json:"api_key"`
	DeviceTokens []string       `json:"device_tokens"`
	Payload      map[string]any `json:"payload"`
}

// Snapshot is one fully validated configuration load: compiled
// patterns, the file list, and channel settings. It is immutable;
// reloads replace the whole snapshot, never mutate it.
type Snapshot struct {
	LogFiles []string
	Patterns []pattern.Pattern
	Routing  map[pattern.Severity][]string
	Email    EmailConfig
	Webhook  WebhookConfig
	Push     PushConfig
	LoadedAt time.Time
}

// Load parses and validates path in full before returning a snapshot.
// Any error means the candidate is rejected wholesale.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfigInvalid, path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfigInvalid, path, err)
	}
	return compile(f)
}

func compile(f File) (*Snapshot, error) {
	snap := &Snapshot{
		Email:    f.Email,
		Webhook:  f.Webhook,
		Push:     f.Push,
		Routing:  map[pattern.Severity][]string{},
		LoadedAt: time.Now(),
	}

	seen := map[string]bool{}
	for _, path := range f.LogFiles {
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, fmt.Errorf("%w: empty log_files entry", ErrConfigInvalid)
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		snap.LogFiles = append(snap.LogFiles, path)
	}

	names := map[string]bool{}
	for i, pc := range f.Patterns {
		p, err := pattern.Compile(pattern.Spec{
			Name:         pc.Name,
			Regex:        pc.Regex,
			MatchType:    pc.MatchType,
			Severity:     pc.Severity,
			AlertMethods: pc.AlertMethods,
			Context:      pc.Context,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: patterns[%d]: %v", ErrConfigInvalid, i, err)
		}
		if names[p.Name] {
			return nil, fmt.Errorf("%w: duplicate pattern name %q", ErrConfigInvalid, p.Name)
		}
		names[p.Name] = true
		for _, m := range p.AlertMethods {
			if !knownAlertMethod(m) {
				return nil, fmt.Errorf("%w: pattern %q: unknown alert method %q", ErrConfigInvalid, p.Name, m)
			}
		}
		snap.Patterns = append(snap.Patterns, p)
	}

	for rawSev, methods := range f.SeverityLevels {
		sev, err := pattern.ParseSeverity(rawSev)
		if err != nil {
			return nil, fmt.Errorf("%w: severity_levels: %v", ErrConfigInvalid, err)
		}
		var cleaned []string
		for _, m := range methods {
			m = strings.ToLower(strings.TrimSpace(m))
			if m == "" {
				continue
			}
			if !knownAlertMethod(m) {
				return nil, fmt.Errorf("%w: severity_levels[%s]: unknown alert method %q", ErrConfigInvalid, rawSev, m)
			}
			cleaned = append(cleaned, m)
		}
		snap.Routing[sev] = cleaned
	}

	return snap, nil
}

func knownAlertMethod(name string) bool {
	for _, m := range AlertMethods {
		if m == name {
			return true
		}
	}
	return false
}

// Default returns the configuration written by the -c flag. It mirrors
// the shape Logex has always shipped: one example pattern and every
// channel present but disabled.
func Default() File {
	return File{
		LogFiles: []string{},
		Patterns: []PatternConfig{
			{
				Name:         "Example Pattern",
				Regex:        ".*(error|fail|exception).*",
				Severity:     "high",
				AlertMethods: []string{"email", "console"},
				MatchType:    "any",
				Context:      nil,
			},
		},
		Email: EmailConfig{
			Enabled:      false,
			SMTPServer:   "smtp.example.com",
			SMTPPort:     587,
			SMTPUser:     "your_email@example.com",
			SMTPPassword: "your_password",
			FromEmail:    "your_email@example.com",
			ToEmail:      []string{"alert_recipient@example.com"},
		},
		Webhook: WebhookConfig{
			Enabled: false,
			URL:     "https://your-webhook-url.com",
			Headers: map[string]string{"Content-type": "application/json"},
			Payload: map[string]any{"message": "Log monitoring alert! {{alert_message}}"},
		},
		Push: PushConfig{
			Enabled:      false,
			APIURL:       "https://push-api.com",
			APIKey:       "your_api_key",
			DeviceTokens: []string{"token1", "token2"},
			Payload:      map[string]any{"title": "Log monitoring alert!", "body": "{{alert_message}}"},
		},
		SeverityLevels: map[string][]string{
			"high":   {"email", "console"},
			"medium": {"webhook"},
			"low":    {"push"},
		},
	}
}

// WriteDefault creates a default config file at path. It refuses to
// clobber an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	data, err := json.MarshalIndent(Default(), "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
