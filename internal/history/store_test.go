package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CodeByKalvin/Logex/internal/model"
	"github.com/CodeByKalvin/Logex/internal/notify"
	"github.com/CodeByKalvin/Logex/internal/testkit"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func sampleAlert(id string) notify.Alert {
	return notify.Alert{
		ID:       id,
		Pattern:  "Failed login",
		Severity: "high",
		File:     "/var/log/auth.log",
		Line:     "Failed password for root from 1.2.3.4",
	}
}

func TestRecordDispatch_Statuses(t *testing.T) {
	gdb := testkit.OpenTestDB(t)
	s := NewStore(gdb)
	s.Now = fixedNow

	results := []notify.Delivery{
		{Channel: "console"},
		{Channel: "webhook", Err: errors.New("http 500")},
		{Channel: "email", Err: notify.Permanent(errors.New("smtp_server not configured"))},
	}
	if err := s.RecordDispatch(context.Background(), sampleAlert("a-1"), results); err != nil {
		t.Fatalf("RecordDispatch: %v", err)
	}

	var rows []model.AlertDelivery
	if err := gdb.Order("channel ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load deliveries: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 delivery rows, got %d", len(rows))
	}
	byChannel := map[string]model.AlertDelivery{}
	for _, r := range rows {
		byChannel[r.Channel] = r
	}
	if got := byChannel["console"].Status; got != "sent" {
		t.Fatalf("console status = %q", got)
	}
	if got := byChannel["webhook"].Status; got != "pending" {
		t.Fatalf("transient failure status = %q", got)
	}
	if !byChannel["webhook"].NextAttemptAt.After(fixedNow()) {
		t.Fatal("pending delivery must have a future next_attempt_at")
	}
	if got := byChannel["email"].Status; got != "failed" {
		t.Fatalf("permanent failure status = %q", got)
	}

	pending, err := s.PendingDeliveries(context.Background())
	if err != nil || pending != 1 {
		t.Fatalf("PendingDeliveries = %d, %v", pending, err)
	}
}

func TestRecentAlerts_Order(t *testing.T) {
	gdb := testkit.OpenTestDB(t)
	s := NewStore(gdb)

	base := fixedNow()
	for i, id := range []string{"a-1", "a-2", "a-3"} {
		s.Now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if err := s.RecordDispatch(context.Background(), sampleAlert(id), nil); err != nil {
			t.Fatalf("RecordDispatch(%s): %v", id, err)
		}
	}

	got, err := s.RecentAlerts(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a-3" || got[1].ID != "a-2" {
		ids := make([]string, len(got))
		for i, a := range got {
			ids[i] = a.ID
		}
		t.Fatalf("expected newest first [a-3 a-2], got %v", ids)
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	if err := s.RecordDispatch(context.Background(), sampleAlert("a-1"), nil); err != nil {
		t.Fatalf("nil store RecordDispatch: %v", err)
	}
	if _, err := s.RecentAlerts(context.Background(), 10); err != nil {
		t.Fatalf("nil store RecentAlerts: %v", err)
	}
}
