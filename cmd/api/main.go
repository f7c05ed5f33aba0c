package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/lipanganya/doctime-api/internal/app"
	"github.com/lipanganya/doctime-api/internal/config"
	adminHandler "github.com/lipanganya/doctime-api/internal/handler/admin"
	authHandler "github.com/lipanganya/doctime-api/internal/handler/auth"
	casesHandler "github.com/lipanganya/doctime-api/internal/handler/cases"
	healthHandler "github.com/lipanganya/doctime-api/internal/handler/health"
	referenceHandler "github.com/lipanganya/doctime-api/internal/handler/reference"
	referralHandler "github.com/lipanganya/doctime-api/internal/handler/referral"
	reportHandler "github.com/lipanganya/doctime-api/internal/handler/report"
	"github.com/lipanganya/doctime-api/internal/middleware"
	"github.com/lipanganya/doctime-api/internal/repository/postgres"
	"github.com/lipanganya/doctime-api/internal/router"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "doctime-api",
		Short:        "DocTime case and referral API",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app.NewLogger(cfg.Log)

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewMigrator(db, postgres.Migrations()).Up(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("applied", n).Msg("migrations complete")
			return nil
		},
	}
}

// sweepCmd runs one auto-complete pass, for cron-driven deployments.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete overdue upcoming cases once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			l := app.NewLogger(cfg.Log)

			a, err := app.New(cmd.Context(), cfg, l)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Services.Cases.AutoCompleteOverdue(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("completed", n).Msg("sweep complete")
			return nil
		},
	}
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	l := app.NewLogger(cfg.Log)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		n, err := postgres.NewMigrator(a.DB, postgres.Migrations()).Up(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("applied", n).Msg("migrations complete")
	}

	svc := a.Services
	handlers := router.Handlers{
		Health:    healthHandler.NewHandler(a.Registry, a.Checks()),
		Auth:      authHandler.NewHandler(svc.Auth),
		Cases:     casesHandler.NewHandler(svc.Cases),
		Referrals: referralHandler.NewHandler(svc.Referrals),
		Reference: referenceHandler.NewHandler(svc.Reference),
		Reports:   reportHandler.NewHandler(svc.Reports),
		Admin: adminHandler.NewHandler(adminHandler.Services{
			Users:     svc.Admin,
			Reports:   svc.Reports,
			Cases:     svc.Cases,
			Referrals: svc.Referrals,
			Roles:     svc.Reference,
			Settings:  svc.Settings,
			Activity:  svc.Activity,
		}),
	}

	r, err := router.NewRouter(middleware.NewAuthMiddleware(svc.JWT), handlers, a.Metrics, router.RouterConfig{
		RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		AuthPerMinute:  cfg.RateLimit.AuthPerMinute,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		return err
	}
	r.Setup()
	go r.Run(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("profile", cfg.App.Profile).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("server exited")
	return nil
}
