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

func TestWorkerProcessOnce_RetriesAndSucceeds(t *testing.T) {
	gdb := testkit.OpenTestDB(t)
	s := NewStore(gdb)
	s.Now = fixedNow

	err := s.RecordDispatch(context.Background(), sampleAlert("a-1"), []notify.Delivery{
		{Channel: "webhook", Err: errors.New("http 503")},
	})
	if err != nil {
		t.Fatalf("RecordDispatch: %v", err)
	}

	var sent []string
	w := NewWorker(gdb, func(_ context.Context, channel string, a notify.Alert) error {
		sent = append(sent, channel+":"+a.ID)
		return nil
	})
	// Advance past the first backoff so the pending row is due.
	w.Now = func() time.Time { return fixedNow().Add(time.Hour) }

	n, err := w.ProcessOnce(context.Background(), 50)
	if err != nil || n != 1 {
		t.Fatalf("ProcessOnce = %d, %v", n, err)
	}
	if len(sent) != 1 || sent[0] != "webhook:a-1" {
		t.Fatalf("unexpected resends %v", sent)
	}

	var row model.AlertDelivery
	if err := gdb.First(&row, "alert_id = ?", "a-1").Error; err != nil {
		t.Fatalf("load delivery: %v", err)
	}
	if row.Status != "sent" || row.LastError != "" {
		t.Fatalf("delivery not marked sent: %+v", row)
	}

	// Nothing left to process.
	if n, _ := w.ProcessOnce(context.Background(), 50); n != 0 {
		t.Fatalf("expected empty second pass, processed %d", n)
	}
}

func TestWorkerProcessOnce_PermanentFailure(t *testing.T) {
	gdb := testkit.OpenTestDB(t)
	s := NewStore(gdb)
	s.Now = fixedNow

	if err := s.RecordDispatch(context.Background(), sampleAlert("a-1"), []notify.Delivery{
		{Channel: "email", Err: errors.New("timeout")},
	}); err != nil {
		t.Fatalf("RecordDispatch: %v", err)
	}

	w := NewWorker(gdb, func(context.Context, string, notify.Alert) error {
		return notify.Permanent(errors.New("auth rejected"))
	})
	w.Now = func() time.Time { return fixedNow().Add(time.Hour) }

	if _, err := w.ProcessOnce(context.Background(), 50); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}

	var row model.AlertDelivery
	if err := gdb.First(&row, "alert_id = ?", "a-1").Error; err != nil {
		t.Fatalf("load delivery: %v", err)
	}
	if row.Status != "failed" || row.Attempts != 2 {
		t.Fatalf("permanent error should fail the delivery: %+v", row)
	}
}

func TestWorkerProcessOnce_RespectsBackoff(t *testing.T) {
	gdb := testkit.OpenTestDB(t)
	s := NewStore(gdb)
	s.Now = fixedNow

	if err := s.RecordDispatch(context.Background(), sampleAlert("a-1"), []notify.Delivery{
		{Channel: "webhook", Err: errors.New("http 500")},
	}); err != nil {
		t.Fatalf("RecordDispatch: %v", err)
	}

	w := NewWorker(gdb, func(context.Context, string, notify.Alert) error {
		t.Fatal("delivery attempted before its backoff expired")
		return nil
	})
	w.Now = fixedNow

	if n, err := w.ProcessOnce(context.Background(), 50); err != nil || n != 0 {
		t.Fatalf("ProcessOnce = %d, %v; want 0 due deliveries", n, err)
	}
}

func TestWorkerProcessOnce_OrphanedDelivery(t *testing.T) {
	gdb := testkit.OpenTestDB(t)

	orphan := model.AlertDelivery{
		AlertID:       "gone",
		Channel:       "console",
		Status:        "pending",
		NextAttemptAt: fixedNow(),
	}
	if err := gdb.Create(&orphan).Error; err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	w := NewWorker(gdb, func(context.Context, string, notify.Alert) error {
		t.Fatal("orphaned delivery must not be resent")
		return nil
	})
	w.Now = func() time.Time { return fixedNow().Add(time.Minute) }

	if _, err := w.ProcessOnce(context.Background(), 50); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	var row model.AlertDelivery
	if err := gdb.First(&row, "id = ?", orphan.ID).Error; err != nil {
		t.Fatalf("load delivery: %v", err)
	}
	if row.Status != "failed" {
		t.Fatalf("orphan should be failed, got %+v", row)
	}
}

func TestBackoffDelayCaps(t *testing.T) {
	if d := backoffDelay(1); d != 2*time.Second {
		t.Fatalf("first retry delay = %v", d)
	}
	if d := backoffDelay(2); d != 4*time.Second {
		t.Fatalf("second retry delay = %v", d)
	}
	if d := backoffDelay(30); d != 30*time.Minute {
		t.Fatalf("delay must cap at 30m, got %v", d)
	}
}
