package notify

import (
	"context"
	"log"
)

// Console writes the alert to the local log. It is always available
// and never fails.
type Console struct {
	Logger *log.Logger
}

func (Console) Name() string { return "console" }

func (c Console) Send(_ context.Context, a Alert) error {
	l := c.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf("ALERT %s", a.Message())
	return nil
}
