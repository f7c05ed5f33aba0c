package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/lipanganya/doctime-api/pkg/logger"
)

type ActivityCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// ActivityCleanupWorker deletes activity entries older than the retention.
type ActivityCleanupWorker struct {
	cleaner         ActivityCleaner
	retentionDays   int
	cleanupInterval time.Duration
	log             *logger.Logger
}

func NewActivityCleanupWorker(cleaner ActivityCleaner, retentionDays int, cleanupInterval time.Duration, log *logger.Logger) *ActivityCleanupWorker {
	return &ActivityCleanupWorker{
		cleaner:         cleaner,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		log:             log,
	}
}

func (w *ActivityCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.Error(err, "activity cleanup failed")
			}
		}
	}
}

func (w *ActivityCleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	retention := time.Duration(w.retentionDays) * 24 * time.Hour

	rows, err := w.cleaner.Cleanup(ctx, retention)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup activity logs: %w", err)
	}
	if rows > 0 {
		w.log.Info("cleaned up activity logs", "rows", rows, "retention_days", w.retentionDays)
	}
	return rows, nil
}
