package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/lipanganya/doctime-api/internal/app"
	"github.com/lipanganya/doctime-api/internal/config"
	jobs "github.com/lipanganya/doctime-api/internal/worker"
	"github.com/lipanganya/doctime-api/pkg/messaging"
	"github.com/lipanganya/doctime-api/pkg/worker"
)

type starter interface {
	Start(ctx context.Context)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	l := app.NewLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise worker")
	}
	defer a.Close()

	workers := []starter{
		worker.NewOutboxProcessor(
			a.Repos.Outbox,
			messaging.NewChannelPublisher(a.Broker, cfg.Redis.Channel),
			cfg.Outbox.ToWorkerConfig(),
			l,
			a.Metrics,
		),
		worker.NewCleanupWorker(a.Repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, l),
		jobs.NewActivityCleanupWorker(a.Services.Activity, cfg.Scheduler.ActivityRetentionDays, cfg.Scheduler.CleanupInterval, l),
	}
	// Development databases keep their overdue cases so they can be inspected.
	if cfg.IsProduction() {
		workers = append(workers, jobs.NewAutoCompleteWorker(a.Services.Cases, cfg.Scheduler.AutoCompleteInterval, l))
	}

	srv := healthServer(cfg.Server.HealthPort, a)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health check server failed")
			cancel()
		}
	}()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w starter) {
			defer wg.Done()
			w.Start(ctx)
		}(w)
	}
	log.Info().Int("workers", len(workers)).Msg("worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
}

func healthServer(port int, a *app.App) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range a.Checks() {
			if err := check(ctx); err != nil {
				http.Error(w, name+": "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
