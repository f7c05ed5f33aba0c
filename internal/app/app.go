// Package app builds the dependency graph shared by the API and worker
// binaries.
package app

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/lipanganya/doctime-api/internal/config"
	"github.com/lipanganya/doctime-api/internal/email"
	"github.com/lipanganya/doctime-api/internal/handler/health"
	"github.com/lipanganya/doctime-api/internal/repository"
	"github.com/lipanganya/doctime-api/internal/repository/memory"
	"github.com/lipanganya/doctime-api/internal/repository/postgres"
	redisrepo "github.com/lipanganya/doctime-api/internal/repository/redis"
	"github.com/lipanganya/doctime-api/internal/service/activity"
	"github.com/lipanganya/doctime-api/internal/service/admin"
	authsvc "github.com/lipanganya/doctime-api/internal/service/auth"
	"github.com/lipanganya/doctime-api/internal/service/cases"
	"github.com/lipanganya/doctime-api/internal/service/event"
	"github.com/lipanganya/doctime-api/internal/service/notification"
	"github.com/lipanganya/doctime-api/internal/service/reference"
	"github.com/lipanganya/doctime-api/internal/service/referral"
	"github.com/lipanganya/doctime-api/internal/service/report"
	"github.com/lipanganya/doctime-api/internal/service/settings"
	"github.com/lipanganya/doctime-api/pkg/auth"
	"github.com/lipanganya/doctime-api/pkg/logger"
	"github.com/lipanganya/doctime-api/pkg/messaging"
	"github.com/lipanganya/doctime-api/pkg/messaging/redis"
	"github.com/lipanganya/doctime-api/pkg/metrics"
	"github.com/lipanganya/doctime-api/pkg/security"
	"github.com/lipanganya/doctime-api/pkg/sms"
)

const metricsNamespace = "doctime"

type Repositories struct {
	Tx        repository.TxManager
	Users     repository.UserRepository
	Cases     repository.CaseRepository
	Referrals repository.ReferralRepository
	Activity  repository.ActivityRepository
	Outbox    repository.OutboxRepository
	Reference repository.ReferenceRepository
	Settings  repository.SettingRepository
	Reports   repository.ReportRepository
	OTPs      repository.OTPStore
}

type Services struct {
	JWT           auth.JWTService
	Auth          *authsvc.Service
	Cases         *cases.Service
	Referrals     *referral.Service
	Reference     *reference.Service
	Reports       *report.Service
	Admin         *admin.Service
	Settings      *settings.Service
	Activity      *activity.Service
	Notifications *notification.Dispatcher
}

// App owns every long-lived connection. Close releases them.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *sqlx.DB
	Redis    *goredis.Client
	Broker   messaging.Broker
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Repos    Repositories
	Services Services
}

// NewLogger configures the global zerolog logger from cfg and wraps it.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	l := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Pretty,
	})
	log.Logger = *l.Zerolog()
	return l
}

// New connects to Postgres and, when reachable, Redis, then builds the
// repositories and services. Without Redis, OTPs and broker messages stay in
// process memory.
func New(ctx context.Context, cfg *config.Config, l *logger.Logger) (*App, error) {
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Log:      l,
		DB:       db,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewMetrics(metricsNamespace, a.Registry)

	client, err := redis.NewClient(ctx, cfg.Redis.ToBrokerConfig())
	if err != nil {
		l.Warn("redis unavailable, using in-memory otp store and broker", "error", err.Error())
		a.Broker = messaging.NewMemoryBroker()
	} else {
		a.Redis = client
		a.Broker = redis.NewRedisBroker(client, l)
	}

	a.buildRepositories()
	if err := a.buildServices(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) buildRepositories() {
	base := postgres.NewBaseRepository(a.DB)
	a.Repos = Repositories{
		Tx:        &base,
		Users:     postgres.NewUserRepository(base),
		Cases:     postgres.NewCaseRepository(base),
		Referrals: postgres.NewReferralRepository(base),
		Activity:  postgres.NewActivityRepository(base),
		Outbox:    postgres.NewOutboxRepository(base),
		Reference: postgres.NewReferenceRepository(base),
		Settings:  postgres.NewSettingRepository(base),
		Reports:   postgres.NewReportRepository(base),
	}
	if a.Redis != nil {
		a.Repos.OTPs = redisrepo.NewOTPStore(a.Redis)
	} else {
		a.Repos.OTPs = memory.NewOTPStore()
	}
}

func (a *App) buildServices() error {
	cfg := a.Config
	jwt, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL())
	if err != nil {
		return err
	}

	var smsSender sms.Sender = sms.NewLogSender(a.Log)
	if cfg.SMSDeliveryEnabled() {
		smsSender = sms.NewAdvantaClient(cfg.Secrets.SMSConfig())
	}

	activitySvc := activity.NewService(a.Repos.Activity, a.Log)
	settingsSvc := settings.NewService(a.Repos.Settings, activitySvc, a.Log)
	events := event.NewService(a.Repos.Outbox)
	dispatcher := notification.NewDispatcher(
		smsSender,
		settingsSvc,
		messaging.NewChannelPublisher(a.Broker, notification.PushChannel),
		email.New(cfg.Secrets.EmailConfig(), a.Log),
		notification.Options{AlwaysDeliver: cfg.SMSDeliveryEnabled()},
		a.Log,
		a.Metrics,
	)

	casesSvc := cases.NewService(
		a.Repos.Tx, a.Repos.Cases, a.Repos.Referrals, a.Repos.Users,
		events, activitySvc, dispatcher, a.Log, a.Metrics,
	)
	casesSvc.SetSweepBatch(cfg.Scheduler.AutoCompleteBatch)

	a.Services = Services{
		JWT: jwt,
		Auth: authsvc.NewService(
			a.Repos.Users, a.Repos.OTPs, security.NewBcryptHasher(bcrypt.DefaultCost), jwt,
			dispatcher, activitySvc,
			authsvc.Config{OTPTTL: cfg.OTP.TTL, EchoOTP: !cfg.IsProduction()},
			a.Log,
		),
		Cases: casesSvc,
		Referrals: referral.NewService(
			a.Repos.Tx, a.Repos.Cases, a.Repos.Referrals, a.Repos.Users,
			events, activitySvc, dispatcher, settingsSvc, cfg.Referral.AppLink, a.Log,
		),
		Reference:     reference.NewService(a.Repos.Reference, cfg.Cache.ReferenceTTL),
		Reports:       report.NewService(a.Repos.Reports),
		Admin:         admin.NewService(a.Repos.Users),
		Settings:      settingsSvc,
		Activity:      activitySvc,
		Notifications: dispatcher,
	}
	return nil
}

// Checks returns the readiness checks for the connections this App holds.
func (a *App) Checks() map[string]health.Checker {
	checks := map[string]health.Checker{
		"database": a.DB.PingContext,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *App) Close() error {
	// The redis broker owns the client and closes it.
	if err := a.Broker.Close(); err != nil {
		a.Log.Warn("failed to close broker", "error", err.Error())
	}
	return a.DB.Close()
}
