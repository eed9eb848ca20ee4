package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("LOGEX_CONFIG", "")
	t.Setenv("LOGEX_STATE", "")
	t.Setenv("LOGEX_POLL_INTERVAL", "")
	t.Setenv("LOGEX_REDIS_ADDR", "")
	t.Setenv("LOGEX_ENABLE_METRICS", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ConfigFile != "monitor_config.json" {
		t.Fatalf("expected default config file, got %q", cfg.ConfigFile)
	}
	if cfg.StateFile != "monitor_state.json" {
		t.Fatalf("expected default state file, got %q", cfg.StateFile)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("expected 1s poll interval, got %v", cfg.PollInterval)
	}
	if cfg.EnableMetrics {
		t.Fatalf("expected metrics disabled when LOGEX_REDIS_ADDR is empty")
	}
	if !cfg.EnableAPI || !cfg.EnableHistory {
		t.Fatalf("expected API and history on by default")
	}
	if cfg.HistoryRetention != 90*24*time.Hour {
		t.Fatalf("expected 90 day retention default, got %v", cfg.HistoryRetention)
	}
}

func TestFromEnv_Toggles(t *testing.T) {
	t.Setenv("LOGEX_ENABLE_API", "false")
	t.Setenv("LOGEX_ENABLE_HISTORY", "false")
	t.Setenv("LOGEX_REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("LOGEX_POLL_INTERVAL", "250ms")
	t.Setenv("LOGEX_DISPATCH_TIMEOUT", "not-a-duration")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.EnableAPI || cfg.EnableHistory {
		t.Fatalf("expected API and history disabled")
	}
	if !cfg.EnableMetrics {
		t.Fatalf("expected metrics enabled with redis addr set")
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval %v", cfg.PollInterval)
	}
	if cfg.DispatchTimeout != 5*time.Second {
		t.Fatalf("expected dispatch timeout fallback, got %v", cfg.DispatchTimeout)
	}
}

func TestHelpers_ParseDefaults(t *testing.T) {
	t.Parallel()

	if parseBoolDefault("not-bool", true) != true {
		t.Fatalf("expected parseBoolDefault fallback")
	}
	if parseIntDefault("not-int", 7) != 7 {
		t.Fatalf("expected parseIntDefault fallback")
	}
	if parseDurationDefault("-1s", 3*time.Second) != 3*time.Second {
		t.Fatalf("expected parseDurationDefault fallback for non-positive")
	}
}
