package di

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/app"
	"github.com/ARamos00/nursery-tracker/internal/config"
	"github.com/ARamos00/nursery-tracker/internal/database"
	"github.com/ARamos00/nursery-tracker/internal/http/handler"
	"github.com/ARamos00/nursery-tracker/internal/http/middleware"
	"github.com/ARamos00/nursery-tracker/internal/observability"
	"github.com/ARamos00/nursery-tracker/internal/repository"
	"github.com/ARamos00/nursery-tracker/internal/service"
)

func provideLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg.LogLevel)
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// provideRecordStore picks the idempotency backend: the GORM repository by
// default, Redis with TTL expiry when enabled.
func provideRecordStore(cfg *config.Config, db *gorm.DB) service.IdempotencyRecordStore {
	if cfg.IdempotencyRedisEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return service.NewRedisIdempotencyStore(client, "idem", cfg.IdempotencyRetention)
	}
	return repository.NewIdempotencyRepository(db)
}

func provideDelivererConfig(cfg *config.Config) service.DelivererConfig {
	return service.DelivererConfig{
		SignatureHeader:   cfg.WebhooksSignatureHeader,
		UserAgent:         cfg.WebhooksUserAgent,
		Timeout:           cfg.WebhooksTimeout,
		BatchSize:         cfg.WebhooksBatchSize,
		BackoffSchedule:   cfg.WebhooksBackoffSchedule,
		MaxAttempts:       cfg.WebhooksMaxAttempts,
		ResponseBodyLimit: cfg.WebhooksResponseBodyLimit,
	}
}

func providePlantHandler(svc *service.PlantService, cfg *config.Config) *handler.PlantHandler {
	return handler.NewPlantHandler(svc, cfg.EnforceIfMatch)
}

func provideWebhookHandler(
	endpoints repository.WebhookEndpointRepository,
	deliveries repository.WebhookDeliveryRepository,
	cfg *config.Config,
) *handler.WebhookHandler {
	return handler.NewWebhookHandler(endpoints, deliveries, cfg.WebhooksRequireHTTPS)
}

// provideRateLimiter returns nil when rate limiting is off; the router treats
// a nil limiter as "no middleware".
func provideRateLimiter(cfg *config.Config, logger *slog.Logger) *middleware.RateLimiter {
	if !cfg.RateLimitEnabled {
		return nil
	}
	policy := middleware.RateLimitPolicy{
		SustainedLimit:  cfg.RateLimitRequests,
		SustainedWindow: cfg.RateLimitWindow,
	}
	mode := middleware.FailClosed
	if cfg.RateLimitFailOpen {
		mode = middleware.FailOpen
	}
	var limiter middleware.Limiter
	if cfg.RateLimitRedisEnabled {
		limiter = middleware.NewRedisLimiter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), "rl")
	} else {
		limiter = middleware.NewLocalLimiter()
	}
	return middleware.NewRateLimiter(limiter, policy, mode, logger)
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(provideLogger)

var DatabaseSet = wire.NewSet(provideDB)

var RepositorySet = wire.NewSet(
	repository.NewPlantRepository,
	repository.NewWebhookEndpointRepository,
	repository.NewWebhookDeliveryRepository,
	repository.NewIdempotencyRepository,
)

// Worker bundles what cmd/worker needs for one scheduled invocation.
type Worker struct {
	Config      *config.Config
	Logger      *slog.Logger
	DB          *gorm.DB
	Deliverer   *service.WebhookDeliverer
	Idempotency repository.IdempotencyRepository
}

func NewWorker(
	cfg *config.Config,
	logger *slog.Logger,
	db *gorm.DB,
	deliverer *service.WebhookDeliverer,
	idempotency repository.IdempotencyRepository,
) *Worker {
	return &Worker{Config: cfg, Logger: logger, DB: db, Deliverer: deliverer, Idempotency: idempotency}
}

var ServiceSet = wire.NewSet(
	provideRecordStore,
	service.NewIdempotencyGate,
	service.NewWebhookEnqueuer,
	service.NewPlantService,
	provideDelivererConfig,
	service.NewWebhookDeliverer,
)

var HTTPSet = wire.NewSet(
	providePlantHandler,
	provideWebhookHandler,
	provideRateLimiter,
	app.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)
