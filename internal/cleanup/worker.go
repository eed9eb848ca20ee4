package cleanup

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/CodeByKalvin/Logex/internal/model"
)

// Worker prunes alert history older than the retention window. Rows
// are deleted in bounded batches so a large backlog never holds the
// single sqlite connection for long.
type Worker struct {
	DB              *gorm.DB
	Retention       time.Duration
	Interval        time.Duration
	DeleteBatchSize int
	MaxBatches      int
	Now             func() time.Time
}

func NewWorker(db *gorm.DB, retention time.Duration) *Worker {
	return &Worker{
		DB:              db,
		Retention:       retention,
		Interval:        10 * time.Minute,
		DeleteBatchSize: 5000,
		MaxBatches:      50,
		Now:             time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.DB == nil || w.Retention <= 0 {
		return
	}
	if _, err := w.RunOnce(ctx); err != nil {
		log.Printf("cleanup: %v", err)
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				log.Printf("cleanup: %v", err)
			}
		}
	}
}

// RunOnce deletes expired alerts and their delivery rows, returning
// how many alerts were removed.
func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	if w == nil || w.DB == nil || w.Retention <= 0 {
		return 0, nil
	}
	batchSize := w.DeleteBatchSize
	if batchSize <= 0 {
		batchSize = 5000
	}
	maxBatches := w.MaxBatches
	if maxBatches <= 0 {
		maxBatches = 1
	}
	before := w.Now().UTC().Add(-w.Retention)

	var total int64
	for i := 0; i < maxBatches; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var ids []string
		if err := w.DB.WithContext(ctx).Model(&model.Alert{}).
			Where("created_at < ?", before).
			Order("created_at ASC").
			Limit(batchSize).
			Pluck("id", &ids).Error; err != nil {
			return total, err
		}
		if len(ids) == 0 {
			break
		}

		err := w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("alert_id IN ?", ids).Delete(&model.AlertDelivery{}).Error; err != nil {
				return err
			}
			return tx.Where("id IN ?", ids).Delete(&model.Alert{}).Error
		})
		if err != nil {
			return total, err
		}
		total += int64(len(ids))
	}
	if total > 0 {
		log.Printf("cleanup: pruned %d alerts older than %s", total, w.Retention)
	}
	return total, nil
}
