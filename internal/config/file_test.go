package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeByKalvin/Logex/internal/pattern"
)

func writeConfig(t *testing.T, f File) string {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "monitor_config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validFile() File {
	f := Default()
	f.LogFiles = []string{"/var/log/auth.log"}
	return f
}

func TestLoad_Valid(t *testing.T) {
	t.Parallel()

	snap, err := Load(writeConfig(t, validFile()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.LogFiles) != 1 || snap.LogFiles[0] != "/var/log/auth.log" {
		t.Fatalf("unexpected log files %v", snap.LogFiles)
	}
	if len(snap.Patterns) != 1 || snap.Patterns[0].Name != "Example Pattern" {
		t.Fatalf("unexpected patterns %v", snap.Patterns)
	}
	if got := snap.Routing[pattern.SeverityHigh]; len(got) != 2 || got[0] != "email" || got[1] != "console" {
		t.Fatalf("unexpected high routing %v", got)
	}
}

func TestLoad_RejectsBadRegex(t *testing.T) {
	t.Parallel()

	f := validFile()
	f.Patterns[0].Regex = "(["
	if _, err := Load(writeConfig(t, f)); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_RejectsUnknownSeverity(t *testing.T) {
	t.Parallel()

	f := validFile()
	f.Patterns[0].Severity = "catastrophic"
	if _, err := Load(writeConfig(t, f)); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_RejectsDuplicatePatternName(t *testing.T) {
	t.Parallel()

	f := validFile()
	f.Patterns = append(f.Patterns, f.Patterns[0])
	if _, err := Load(writeConfig(t, f)); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_RejectsUnknownAlertMethod(t *testing.T) {
	t.Parallel()

	f := validFile()
	f.SeverityLevels["high"] = []string{"pager"}
	if _, err := Load(writeConfig(t, f)); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_RejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{oops"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_DeduplicatesLogFiles(t *testing.T) {
	t.Parallel()

	f := validFile()
	f.LogFiles = []string{"/var/log/a.log", "/var/log/b.log", "/var/log/a.log"}
	snap, err := Load(writeConfig(t, f))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.LogFiles) != 2 {
		t.Fatalf("expected deduplicated log files, got %v", snap.LogFiles)
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "monitor_config.json")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	// The generated default must itself load cleanly.
	if _, err := Load(path); err != nil {
		t.Fatalf("Load(default): %v", err)
	}

	if err := WriteDefault(path); err == nil {
		t.Fatalf("expected refusal to overwrite an existing config")
	}
}
