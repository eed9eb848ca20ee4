package obs

import (
	"testing"
	"time"
)

func TestStatsSnapshot(t *testing.T) {
	t.Parallel()

	s := New()
	s.ObserveSweep(10, 2*time.Millisecond)
	s.ObserveSweep(5, 4*time.Millisecond)
	s.ObserveMatch("high")
	s.ObserveMatch("high")
	s.ObserveMatch("low")
	s.ObserveMatch("bogus")
	s.ObserveDelivery(nil)
	s.ObserveDelivery(errTest)
	s.ObserveReadError()
	s.ObserveRotation()
	s.ObserveReload()
	s.ObserveCheckpoint()

	snap := s.Snapshot()
	if snap.Sweeps.Total != 2 || snap.Sweeps.LinesRead != 15 {
		t.Fatalf("sweeps = %+v", snap.Sweeps)
	}
	if snap.Sweeps.AvgMS < 2.9 || snap.Sweeps.AvgMS > 3.1 {
		t.Fatalf("avg sweep latency = %v", snap.Sweeps.AvgMS)
	}
	if snap.Matches.High != 2 || snap.Matches.Medium != 0 || snap.Matches.Low != 1 {
		t.Fatalf("matches = %+v", snap.Matches)
	}
	if snap.Deliveries.Total != 2 || snap.Deliveries.Errors != 1 {
		t.Fatalf("deliveries = %+v", snap.Deliveries)
	}
	if snap.Sweeps.ReadErrors != 1 || snap.Sweeps.Rotations != 1 {
		t.Fatalf("errors/rotations = %+v", snap.Sweeps)
	}
	if snap.Reloads != 1 || snap.Checkpoints != 1 {
		t.Fatalf("reloads=%d checkpoints=%d", snap.Reloads, snap.Checkpoints)
	}
}

func TestNilStatsIsSafe(t *testing.T) {
	t.Parallel()

	var s *Stats
	s.ObserveSweep(1, time.Millisecond)
	s.ObserveMatch("high")
	s.ObserveDelivery(nil)
	if snap := s.Snapshot(); snap.Sweeps.Total != 0 {
		t.Fatalf("nil stats snapshot = %+v", snap)
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "test error" }
