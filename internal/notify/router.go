package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/CodeByKalvin/Logex/internal/config"
	"github.com/CodeByKalvin/Logex/internal/pattern"
)

// Delivery is the outcome of one channel attempt for one alert.
type Delivery struct {
	Channel string
	Err     error
}

// Router fans an alert out to its resolved channels. Channels fail
// independently; results are joined before the caller moves to the
// next match. A Router is built per configuration snapshot and never
// mutated after construction.
type Router struct {
	channels map[string]Notifier
	routing  map[pattern.Severity][]string
	timeout  time.Duration
}

// NewRouter builds the channel set from a snapshot. Disabled channels
// are simply absent; console is always available.
func NewRouter(snap *config.Snapshot, client *http.Client, timeout time.Duration) *Router {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	channels := map[string]Notifier{
		"console": Console{},
	}
	if snap.Email.Enabled {
		channels["email"] = NewEmail(snap.Email)
	}
	if snap.Webhook.Enabled {
		channels["webhook"] = NewWebhook(snap.Webhook, client)
	}
	if snap.Push.Enabled {
		channels["push"] = NewPush(snap.Push, client)
	}
	return &Router{channels: channels, routing: snap.Routing, timeout: timeout}
}

// Resolve returns the channels for a match: the pattern's explicit
// alert_methods win; an empty list falls back to the severity routing.
func (r *Router) Resolve(methods []string, sev pattern.Severity) []string {
	if len(methods) > 0 {
		return methods
	}
	return r.routing[sev]
}

// Dispatch sends the alert to every resolved channel concurrently and
// waits for all of them. A failure on one channel never blocks the
// others.
func (r *Router) Dispatch(ctx context.Context, a Alert, methods []string) []Delivery {
	names := r.Resolve(methods, a.Severity)
	out := make([]Delivery, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			out[i] = Delivery{Channel: name, Err: r.SendTo(ctx, name, a)}
		}(i, name)
	}
	wg.Wait()
	return out
}

// SendTo delivers through a single named channel with the router's
// per-channel timeout applied.
func (r *Router) SendTo(ctx context.Context, channel string, a Alert) error {
	n, ok := r.channels[channel]
	if !ok {
		return permanent(fmt.Errorf("%w: %q", ErrUnknownChannel, channel))
	}
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return n.Send(sctx, a)
}
