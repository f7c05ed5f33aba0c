package router

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	adminHandler "github.com/lipanganya/doctime-api/internal/handler/admin"
	authHandler "github.com/lipanganya/doctime-api/internal/handler/auth"
	casesHandler "github.com/lipanganya/doctime-api/internal/handler/cases"
	healthHandler "github.com/lipanganya/doctime-api/internal/handler/health"
	referenceHandler "github.com/lipanganya/doctime-api/internal/handler/reference"
	referralHandler "github.com/lipanganya/doctime-api/internal/handler/referral"
	reportHandler "github.com/lipanganya/doctime-api/internal/handler/report"
	"github.com/lipanganya/doctime-api/internal/middleware"
	"github.com/lipanganya/doctime-api/pkg/metrics"
)

type Handlers struct {
	Health    *healthHandler.Handler
	Auth      *authHandler.Handler
	Cases     *casesHandler.Handler
	Referrals *referralHandler.Handler
	Reference *referenceHandler.Handler
	Reports   *reportHandler.Handler
	Admin     *adminHandler.Handler
}

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	AuthPerMinute  int
	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxBodySize    int64
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	handlers    Handlers
	authLimiter *middleware.IPRateLimiter
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) (*Router, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}

	engine := gin.New()
	r := &Router{
		engine:      engine,
		auth:        auth,
		handlers:    handlers,
		authLimiter: middleware.NewIPRateLimiter(middleware.PerMinute(config.AuthPerMinute)),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.ErrorHandler(),
		middleware.Validation(),
		middleware.CORS(config.CORSOrigins),
		middleware.SecurityHeaders(),
		middleware.BodyLimit(config.MaxBodySize),
		middleware.Timeout(config.RequestTimeout),
	)

	if config.RateLimit > 0 {
		engine.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}).RateLimit())
	}

	return r, nil
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.handlers.Health.RegisterRoutes(api)

	authenticate := r.auth.Authenticate()
	r.handlers.Auth.RegisterRoutes(api, authenticate, r.authLimiter.RateLimit())

	protected := api.Group("", authenticate)
	r.handlers.Cases.RegisterRoutes(protected)
	r.handlers.Referrals.RegisterRoutes(protected)
	r.handlers.Reference.RegisterRoutes(protected)
	r.handlers.Reports.RegisterRoutes(protected)

	r.handlers.Admin.RegisterRoutes(api, authenticate, r.auth.RequireAdmin())
}

// Run evicts idle per-client limiters until ctx is done.
func (r *Router) Run(ctx context.Context) {
	r.authLimiter.Run(ctx)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
