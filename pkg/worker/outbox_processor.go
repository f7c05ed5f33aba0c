package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/messaging"
	"github.com/lipanganya/doctime-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts is the number of publish attempts before an event is
	// marked failed.
	RetryAttempts int
	// RetryDelay is the first backoff; it doubles on each attempt.
	RetryDelay time.Duration
}

// OutboxProcessor publishes committed outbox events to the broker.
type OutboxProcessor struct {
	repo      repository.OutboxRepository
	publisher messaging.Publisher
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	publisher messaging.Publisher,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch locks up to BatchSize due events, publishes them and records
// the outcome in the same transaction. It returns the number published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	published := 0
	err := p.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		events, err := p.repo.GetPendingEventsWithLock(ctx, tx, p.config.BatchSize)
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "error").Inc()
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		p.metrics.DatabaseOperations.WithLabelValues("get_pending_events", "success").Inc()
		p.metrics.OutboxBatchSize.Set(float64(len(events)))

		for _, event := range events {
			ok, err := p.processEvent(ctx, tx, event)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		return nil
	})
	return published, err
}

// processEvent returns an error only when the status update fails, which
// aborts the batch so no event is published twice without a record.
func (p *OutboxProcessor) processEvent(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) (bool, error) {
	pubErr := p.publisher.Publish(ctx, event.EventType, []byte(event.Payload))
	if pubErr == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := p.repo.UpdateStatusTx(ctx, tx, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
			return false, fmt.Errorf("failed to mark event %s processed: %w", event.ID, err)
		}
		return true, nil
	}

	errStr := pubErr.Error()
	attempt := event.RetryCount + 1
	if attempt >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		p.logger.Error(pubErr, "Giving up on outbox event",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"attempts", attempt)
		if err := p.repo.UpdateStatusTx(ctx, tx, event.ID, model.OutboxStatusFailed, &errStr, nil); err != nil {
			return false, fmt.Errorf("failed to mark event %s failed: %w", event.ID, err)
		}
		return false, nil
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.backoff(attempt))
	p.logger.Warn("Outbox publish failed, will retry",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"attempt", attempt,
		"retry_at", retryAt,
		"error", errStr)
	if err := p.repo.UpdateStatusTx(ctx, tx, event.ID, model.OutboxStatusRetry, &errStr, &retryAt); err != nil {
		return false, fmt.Errorf("failed to schedule retry for event %s: %w", event.ID, err)
	}
	return false, nil
}

func (p *OutboxProcessor) backoff(attempt int) time.Duration {
	d := p.config.RetryDelay
	for i := 1; i < attempt && d < time.Hour; i++ {
		d *= 2
	}
	return d
}

// CleanupWorker deletes processed outbox events older than the retention.
type CleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
}

func NewCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, logger *logger.Logger) *CleanupWorker {
	return &CleanupWorker{repo: repo, retention: retention, interval: interval, logger: logger}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.DeleteProcessedBefore(ctx, time.Now().Add(-w.retention))
			if err != nil {
				w.logger.Error(err, "Failed to clean up outbox events")
				continue
			}
			if n > 0 {
				w.logger.Info("Cleaned up outbox events", "deleted", n)
			}
		}
	}
}
