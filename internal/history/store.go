package history

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/CodeByKalvin/Logex/internal/model"
	"github.com/CodeByKalvin/Logex/internal/notify"
)

// Store persists dispatched alerts and their per-channel outcomes.
// A nil Store (history disabled) is safe to call.
type Store struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// RecordDispatch writes the alert row plus one delivery row per
// channel result. Failed transient deliveries are left pending with a
// backoff so the retry worker picks them up; permanent failures are
// marked failed immediately.
func (s *Store) RecordDispatch(ctx context.Context, a notify.Alert, results []notify.Delivery) error {
	if s == nil || s.DB == nil {
		return nil
	}
	now := s.Now().UTC()

	row := model.Alert{
		ID:          a.ID,
		Pattern:     a.Pattern,
		Severity:    string(a.Severity),
		File:        a.File,
		Line:        a.Line,
		MatchedText: a.MatchedText,
		Origin:      a.Origin,
		CreatedAt:   now,
	}

	deliveries := make([]model.AlertDelivery, 0, len(results))
	for _, d := range results {
		md := model.AlertDelivery{
			AlertID:       a.ID,
			Channel:       d.Channel,
			Status:        "sent",
			NextAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if d.Err != nil {
			md.Attempts = 1
			md.LastError = d.Err.Error()
			if notify.IsPermanent(d.Err) {
				md.Status = "failed"
			} else {
				md.Status = "pending"
				md.NextAttemptAt = now.Add(backoffDelay(1))
			}
		}
		deliveries = append(deliveries, md)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if len(deliveries) == 0 {
			return nil
		}
		return tx.Create(&deliveries).Error
	})
}

// RecentAlerts returns the newest alerts, most recent first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	if s == nil || s.DB == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []model.Alert
	err := s.DB.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// PendingDeliveries counts deliveries still waiting on a retry.
func (s *Store) PendingDeliveries(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, nil
	}
	var n int64
	err := s.DB.WithContext(ctx).Model(&model.AlertDelivery{}).
		Where("status = ?", "pending").
		Count(&n).Error
	return n, err
}

func backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := 2 * time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > 30*time.Minute {
			return 30 * time.Minute
		}
	}
	return d
}
