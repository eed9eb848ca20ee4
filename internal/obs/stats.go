package obs

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Stats is the in-process counter set exposed on /api/stats. All
// methods are safe on a nil receiver so instrumentation never needs
// guarding at call sites.
type Stats struct {
	start time.Time

	sweeps         atomic.Int64
	sweepLatencyUS atomic.Int64
	linesRead      atomic.Int64
	readErrors     atomic.Int64
	rotations      atomic.Int64

	matchesHigh   atomic.Int64
	matchesMedium atomic.Int64
	matchesLow    atomic.Int64

	deliveries     atomic.Int64
	deliveryErrors atomic.Int64

	reloads     atomic.Int64
	checkpoints atomic.Int64
}

func New() *Stats {
	return &Stats{start: time.Now()}
}

func (s *Stats) ObserveSweep(lines int, dur time.Duration) {
	if s == nil {
		return
	}
	s.sweeps.Add(1)
	s.linesRead.Add(int64(lines))
	s.sweepLatencyUS.Add(dur.Microseconds())
}

func (s *Stats) ObserveReadError() {
	if s == nil {
		return
	}
	s.readErrors.Add(1)
}

func (s *Stats) ObserveRotation() {
	if s == nil {
		return
	}
	s.rotations.Add(1)
}

func (s *Stats) ObserveMatch(severity string) {
	if s == nil {
		return
	}
	switch severity {
	case "high":
		s.matchesHigh.Add(1)
	case "medium":
		s.matchesMedium.Add(1)
	case "low":
		s.matchesLow.Add(1)
	}
}

func (s *Stats) ObserveDelivery(err error) {
	if s == nil {
		return
	}
	s.deliveries.Add(1)
	if err != nil {
		s.deliveryErrors.Add(1)
	}
}

func (s *Stats) ObserveReload() {
	if s == nil {
		return
	}
	s.reloads.Add(1)
}

func (s *Stats) ObserveCheckpoint() {
	if s == nil {
		return
	}
	s.checkpoints.Add(1)
}

type Snapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`

	Sweeps struct {
		Total      int64   `json:"total"`
		AvgMS      float64 `json:"avg_ms"`
		LinesRead  int64   `json:"lines_read"`
		ReadErrors int64   `json:"read_errors"`
		Rotations  int64   `json:"rotations"`
	} `json:"sweeps"`

	Matches struct {
		High   int64 `json:"high"`
		Medium int64 `json:"medium"`
		Low    int64 `json:"low"`
	} `json:"matches"`

	Deliveries struct {
		Total  int64 `json:"total"`
		Errors int64 `json:"errors"`
	} `json:"deliveries"`

	Reloads     int64 `json:"reloads"`
	Checkpoints int64 `json:"checkpoints"`
}

func (s *Stats) Snapshot() Snapshot {
	var snap Snapshot
	if s == nil {
		return snap
	}
	snap.UptimeSeconds = int64(time.Since(s.start).Seconds())

	sweeps := s.sweeps.Load()
	snap.Sweeps.Total = sweeps
	if sweeps > 0 {
		snap.Sweeps.AvgMS = float64(s.sweepLatencyUS.Load()) / float64(sweeps) / 1000.0
	}
	snap.Sweeps.LinesRead = s.linesRead.Load()
	snap.Sweeps.ReadErrors = s.readErrors.Load()
	snap.Sweeps.Rotations = s.rotations.Load()

	snap.Matches.High = s.matchesHigh.Load()
	snap.Matches.Medium = s.matchesMedium.Load()
	snap.Matches.Low = s.matchesLow.Load()

	snap.Deliveries.Total = s.deliveries.Load()
	snap.Deliveries.Errors = s.deliveryErrors.Load()

	snap.Reloads = s.reloads.Load()
	snap.Checkpoints = s.checkpoints.Load()
	return snap
}

func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
