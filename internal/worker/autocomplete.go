// Package worker runs the periodic jobs of the case backend.
package worker

import (
	"context"
	"time"

	"github.com/lipanganya/doctime-api/pkg/logger"
)

type OverdueCompleter interface {
	AutoCompleteOverdue(ctx context.Context) (int, error)
}

// AutoCompleteWorker completes overdue Upcoming cases on a fixed interval.
type AutoCompleteWorker struct {
	cases    OverdueCompleter
	interval time.Duration
	log      *logger.Logger
}

func NewAutoCompleteWorker(cases OverdueCompleter, interval time.Duration, log *logger.Logger) *AutoCompleteWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &AutoCompleteWorker{cases: cases, interval: interval, log: log}
}

// Start blocks until ctx is done. The first sweep runs one interval after start.
func (w *AutoCompleteWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("starting auto-completion sweep", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.log.Info("stopping auto-completion sweep")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single sweep and returns the number of cases completed.
func (w *AutoCompleteWorker) RunOnce(ctx context.Context) int {
	n, err := w.cases.AutoCompleteOverdue(ctx)
	if err != nil {
		w.log.Error(err, "auto-completion sweep failed", "completed", n)
	}
	return n
}
