package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/CodeByKalvin/Logex/internal/config"
	"github.com/CodeByKalvin/Logex/internal/enrich"
	"github.com/CodeByKalvin/Logex/internal/history"
	"github.com/CodeByKalvin/Logex/internal/metrics"
	"github.com/CodeByKalvin/Logex/internal/notify"
	"github.com/CodeByKalvin/Logex/internal/obs"
	"github.com/CodeByKalvin/Logex/internal/pattern"
	"github.com/CodeByKalvin/Logex/internal/state"
	"github.com/CodeByKalvin/Logex/internal/tail"
)

// State is the loop's lifecycle phase, exposed on /api/status.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateReloading
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateReloading:
		return "reloading"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TargetStatus is the externally visible condition of one monitored
// file.
type TargetStatus struct {
	Path        string    `json:"path"`
	Active      bool      `json:"active"`
	Offset      int64     `json:"offset"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastSweep   time.Time `json:"last_sweep,omitempty"`
}

// target is the loop-private tracking for one configured path. src is
// nil while the file cannot be opened; every sweep retries.
type target struct {
	src     *tail.File
	lastErr string
}

// Loop drives the poll cycle: read new lines from every target,
// evaluate patterns, dispatch alerts, checkpoint offsets. All target
// mutation happens on the Run goroutine; the mutex only guards the
// snapshot maps read by the HTTP API.
type Loop struct {
	cfg     config.Config
	mgr     *config.Manager
	offsets *state.Store

	// Optional collaborators; each is safe to leave nil.
	Hist     *history.Store
	Stats    *obs.Stats
	Recorder *metrics.RedisRecorder
	Geo      *enrich.GeoIP
	Client   *http.Client

	phase  atomic.Int32
	router atomic.Pointer[notify.Router]
	engine *pattern.Engine

	targets map[string]*target

	mu      sync.Mutex
	records map[string]state.Record
	status  map[string]TargetStatus
	dirty   bool
}

func New(cfg config.Config, mgr *config.Manager, offsets *state.Store) *Loop {
	return &Loop{
		cfg:     cfg,
		mgr:     mgr,
		offsets: offsets,
		targets: map[string]*target{},
		records: map[string]state.Record{},
		status:  map[string]TargetStatus{},
	}
}

func (l *Loop) State() State { return State(l.phase.Load()) }

// Targets reports the last observed status of every configured file.
func (l *Loop) Targets() []TargetStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TargetStatus, 0, len(l.status))
	for _, ts := range l.status {
		out = append(out, ts)
	}
	return out
}

// SendTo re-delivers an alert through one channel using the current
// router. The retry worker calls this from its own goroutine.
func (l *Loop) SendTo(ctx context.Context, channel string, a notify.Alert) error {
	r := l.router.Load()
	if r == nil {
		return errors.New("router not ready")
	}
	return r.SendTo(ctx, channel, a)
}

// Run blocks until ctx is cancelled. It owns all file sources; nothing
// else touches them.
func (l *Loop) Run(ctx context.Context) error {
	l.phase.Store(int32(StateInitializing))

	l.mu.Lock()
	l.records = l.offsets.Load()
	l.mu.Unlock()

	snap := l.mgr.Current()
	l.apply(snap)

	if len(snap.LogFiles) > 0 && l.openCount() == 0 {
		l.phase.Store(int32(StateStopped))
		return fmt.Errorf("none of the %d configured log files could be opened", len(snap.LogFiles))
	}

	l.phase.Store(int32(StateRunning))
	log.Printf("monitor: watching %d files with %d patterns every %s",
		len(snap.LogFiles), len(snap.Patterns), l.cfg.PollInterval)

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.phase.Store(int32(StateStopping))
			l.checkpoint()
			l.closeAll()
			l.phase.Store(int32(StateStopped))
			log.Printf("monitor: stopped")
			return nil
		case snap := <-l.mgr.Watch():
			l.phase.Store(int32(StateReloading))
			l.apply(snap)
			l.Stats.ObserveReload()
			l.phase.Store(int32(StateRunning))
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

func (l *Loop) openCount() int {
	n := 0
	for _, t := range l.targets {
		if t.src != nil {
			n++
		}
	}
	return n
}

// apply swaps in a configuration snapshot: new engine, new router, and
// a reconciled target set. Offsets of files that stay configured are
// preserved untouched.
func (l *Loop) apply(snap *config.Snapshot) {
	l.engine = pattern.NewEngine(snap.Patterns)
	l.router.Store(notify.NewRouter(snap, l.Client, l.cfg.DispatchTimeout))

	want := map[string]bool{}
	for _, path := range snap.LogFiles {
		want[path] = true
	}

	for path, t := range l.targets {
		if want[path] {
			continue
		}
		if t.src != nil {
			t.src.Close()
		}
		delete(l.targets, path)
		l.mu.Lock()
		delete(l.status, path)
		l.mu.Unlock()
		log.Printf("monitor: no longer watching %s", path)
	}

	for _, path := range snap.LogFiles {
		if _, ok := l.targets[path]; ok {
			continue
		}
		t := &target{}
		l.targets[path] = t
		l.open(path, t)
	}
}

// open attempts to (re)open one target from its persisted record. A
// missing file is not fatal; the sweep retries until it appears.
func (l *Loop) open(path string, t *target) {
	l.mu.Lock()
	rec := l.records[path]
	l.mu.Unlock()

	src, err := tail.OpenAt(path, rec.Offset, rec.Fingerprint)
	if err != nil {
		t.lastErr = err.Error()
		l.setStatus(path, TargetStatus{Path: path, LastError: t.lastErr})
		log.Printf("monitor: open %s: %v", path, err)
		return
	}
	t.src = src
	t.lastErr = ""
	l.setStatus(path, TargetStatus{
		Path:        path,
		Active:      true,
		Offset:      src.Offset(),
		Fingerprint: src.Fingerprint(),
	})
	log.Printf("monitor: watching %s from offset %d", path, src.Offset())
}

func (l *Loop) setStatus(path string, ts TargetStatus) {
	l.mu.Lock()
	l.status[path] = ts
	l.mu.Unlock()
}

// sweep performs one poll cycle over every target. Offsets are
// checkpointed only after all matched lines were dispatched, so a
// crash re-alerts rather than drops.
func (l *Loop) sweep(ctx context.Context) {
	start := time.Now()
	totalLines := 0

	for path, t := range l.targets {
		if ctx.Err() != nil {
			return
		}
		if t.src == nil {
			l.open(path, t)
			if t.src == nil {
				continue
			}
		}

		lines, rotated, err := t.src.ReadNewLines(ctx)
		if rotated {
			l.Stats.ObserveRotation()
			log.Printf("monitor: %s was rotated or truncated, restarting from the top", path)
		}
		if err != nil {
			t.lastErr = err.Error()
			l.Stats.ObserveReadError()
			if !errors.Is(err, context.Canceled) {
				log.Printf("monitor: read %s: %v", path, err)
			}
		} else {
			t.lastErr = ""
		}

		totalLines += len(lines)
		for _, line := range lines {
			l.process(ctx, path, line)
		}

		l.commit(path, t, start)
	}

	l.Recorder.ObserveLines(ctx, totalLines, start)
	l.Stats.ObserveSweep(totalLines, time.Since(start))
	l.checkpoint()
}

// commit records the target's new read position and publishes its
// status. dirty is set only when the position actually moved.
func (l *Loop) commit(path string, t *target, sweepTime time.Time) {
	rec := state.Record{Offset: t.src.Offset(), Fingerprint: t.src.Fingerprint()}

	l.mu.Lock()
	if l.records[path] != rec {
		l.records[path] = rec
		l.dirty = true
	}
	l.status[path] = TargetStatus{
		Path:        path,
		Active:      t.lastErr == "",
		Offset:      rec.Offset,
		Fingerprint: rec.Fingerprint,
		LastError:   t.lastErr,
		LastSweep:   sweepTime,
	}
	l.mu.Unlock()
}

// process evaluates one line and dispatches an alert per matching
// pattern.
func (l *Loop) process(ctx context.Context, path, line string) {
	matches := l.engine.Evaluate(line)
	if len(matches) == 0 {
		return
	}

	// A line already consumed has its offset committed after this, so
	// when cancellation lands mid-batch the dispatch and history write
	// still run, detached and bounded by the dispatch timeout.
	if ctx.Err() != nil {
		grace := 2 * l.cfg.DispatchTimeout
		if grace <= 0 {
			grace = 10 * time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
	}
	router := l.router.Load()

	var origin string
	if geo, ok := l.Geo.LookupLine(line); ok {
		origin = geo.String()
	}

	for _, m := range matches {
		a := notify.Alert{
			ID:          uuid.NewString(),
			Pattern:     m.PatternName,
			Severity:    m.Severity,
			File:        path,
			Line:        line,
			MatchedText: m.MatchedText,
			Origin:      origin,
			Time:        time.Now().UTC(),
		}
		l.Stats.ObserveMatch(string(m.Severity))
		l.Recorder.ObserveMatch(ctx, string(m.Severity), a.Time)

		results := router.Dispatch(ctx, a, m.AlertMethods)
		for _, d := range results {
			l.Stats.ObserveDelivery(d.Err)
			l.Recorder.ObserveDelivery(ctx, d.Channel, d.Err != nil, a.Time)
			if d.Err != nil {
				log.Printf("monitor: deliver %q via %s: %v", m.PatternName, d.Channel, d.Err)
			}
		}
		if err := l.Hist.RecordDispatch(ctx, a, results); err != nil {
			log.Printf("monitor: record alert history: %v", err)
		}
	}
}

// checkpoint persists offsets when anything moved since the last save.
func (l *Loop) checkpoint() {
	l.mu.Lock()
	if !l.dirty {
		l.mu.Unlock()
		return
	}
	snapshot := make(map[string]state.Record, len(l.records))
	for k, v := range l.records {
		snapshot[k] = v
	}
	l.dirty = false
	l.mu.Unlock()

	if err := l.offsets.Save(snapshot); err != nil {
		log.Printf("monitor: checkpoint offsets: %v", err)
		l.mu.Lock()
		l.dirty = true
		l.mu.Unlock()
		return
	}
	l.Stats.ObserveCheckpoint()
}

func (l *Loop) closeAll() {
	for _, t := range l.targets {
		if t.src != nil {
			t.src.Close()
		}
	}
}
