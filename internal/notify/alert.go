package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CodeByKalvin/Logex/internal/pattern"
)

// Alert is one pattern match prepared for delivery.
type Alert struct {
	ID          string
	Pattern     string
	Severity    pattern.Severity
	File        string
	Line        string
	MatchedText string
	Origin      string // optional GeoIP description of the first IP in the line
	Time        time.Time
}

// Message renders the canonical alert text shared by all channels.
func (a Alert) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert: suspicious activity detected in log file: %s", a.File)
	fmt.Fprintf(&b, "\n Pattern: %s", a.Pattern)
	fmt.Fprintf(&b, "\n Severity: %s", a.Severity)
	fmt.Fprintf(&b, "\n Log Entry: %s", a.Line)
	if a.MatchedText != "" && a.MatchedText != a.Line {
		fmt.Fprintf(&b, "\n Matched: %s", a.MatchedText)
	}
	if a.Origin != "" {
		fmt.Fprintf(&b, "\n Origin: %s", a.Origin)
	}
	if !a.Time.IsZero() {
		fmt.Fprintf(&b, "\n Time: %s", a.Time.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// Notifier is one delivery channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}
