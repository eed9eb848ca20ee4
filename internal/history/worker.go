package history

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/CodeByKalvin/Logex/internal/model"
	"github.com/CodeByKalvin/Logex/internal/notify"
	"github.com/CodeByKalvin/Logex/internal/pattern"
)

// SendFunc re-delivers an alert through one named channel.
type SendFunc func(ctx context.Context, channel string, a notify.Alert) error

// Worker retries pending deliveries on a fixed cadence. It shares the
// history database with the monitor loop and owns nothing else.
type Worker struct {
	DB       *gorm.DB
	Send     SendFunc
	Interval time.Duration
	Now      func() time.Time
}

func NewWorker(db *gorm.DB, send SendFunc) *Worker {
	return &Worker{
		DB:       db,
		Send:     send,
		Interval: 30 * time.Second,
		Now:      time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.DB == nil {
		return nil
	}
	interval := w.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_, _ = w.ProcessOnce(ctx, 50)
		}
	}
}

// ProcessOnce attempts every due pending delivery, up to limit. Each
// outcome is written back individually so a crash mid-batch loses at
// most duplicate sends, never recorded ones.
func (w *Worker) ProcessOnce(ctx context.Context, limit int) (int, error) {
	if w == nil || w.DB == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}
	now := w.Now().UTC()

	var items []model.AlertDelivery
	if err := w.DB.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", "pending", now).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	alerts := map[string]*model.Alert{}
	processed := 0
	for _, d := range items {
		processed++

		a, ok := alerts[d.AlertID]
		if !ok {
			var row model.Alert
			if err := w.DB.WithContext(ctx).First(&row, "id = ?", d.AlertID).Error; err != nil {
				// Orphaned delivery; nothing to resend.
				_ = w.DB.WithContext(ctx).Model(&model.AlertDelivery{}).Where("id = ?", d.ID).
					Updates(map[string]any{"status": "failed", "last_error": "alert row missing", "updated_at": now}).Error
				continue
			}
			a = &row
			alerts[d.AlertID] = a
		}

		err := w.Send(ctx, d.Channel, notify.Alert{
			ID:          a.ID,
			Pattern:     a.Pattern,
			Severity:    pattern.Severity(a.Severity),
			File:        a.File,
			Line:        a.Line,
			MatchedText: a.MatchedText,
			Origin:      a.Origin,
			Time:        a.CreatedAt,
		})
		if err == nil {
			_ = w.DB.WithContext(ctx).Model(&model.AlertDelivery{}).Where("id = ?", d.ID).
				Updates(map[string]any{"status": "sent", "updated_at": now, "last_error": ""}).Error
			continue
		}

		attempts := d.Attempts + 1
		status := "pending"
		next := now.Add(backoffDelay(attempts))
		if notify.IsPermanent(err) || attempts >= 10 {
			status = "failed"
			next = now
		}
		_ = w.DB.WithContext(ctx).Model(&model.AlertDelivery{}).Where("id = ?", d.ID).
			Updates(map[string]any{
				"attempts":        attempts,
				"next_attempt_at": next,
				"status":          status,
				"last_error":      err.Error(),
				"updated_at":      now,
			}).Error
	}
	return processed, nil
}
