package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment configuration for the API server and the
// webhook delivery worker.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET"`

	IdempotencyEnabled      bool          `env:"IDEMPOTENCY_ENABLED" envDefault:"true"`
	IdempotencyRedisEnabled bool          `env:"IDEMPOTENCY_REDIS_ENABLED" envDefault:"false"`
	RedisAddr               string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	IdempotencyRetention    time.Duration `env:"IDEMPOTENCY_RETENTION" envDefault:"24h"`

	WebhooksDeliveryEnabled    bool            `env:"WEBHOOKS_DELIVERY_ENABLED" envDefault:"true"`
	WebhooksRequireHTTPS       bool            `env:"WEBHOOKS_REQUIRE_HTTPS" envDefault:"false"`
	WebhooksSignatureHeader    string          `env:"WEBHOOKS_SIGNATURE_HEADER" envDefault:"X-Webhook-Signature"`
	WebhooksUserAgent          string          `env:"WEBHOOKS_USER_AGENT" envDefault:"NurseryTracker/0.1"`
	WebhooksTimeout            time.Duration   `env:"WEBHOOKS_TIMEOUT" envDefault:"15s"`
	WebhooksBatchSize          int             `env:"WEBHOOKS_BATCH_SIZE" envDefault:"50"`
	WebhooksBackoffSchedule    []time.Duration `env:"WEBHOOKS_BACKOFF_SCHEDULE" envDefault:"1m,5m,30m,2h,24h"`
	WebhooksMaxAttempts        int             `env:"WEBHOOKS_MAX_ATTEMPTS" envDefault:"5"`
	WebhooksResponseBodyLimit  int             `env:"WEBHOOKS_RESPONSE_BODY_LIMIT" envDefault:"8192"`

	EnforceIfMatch bool `env:"ENFORCE_IF_MATCH" envDefault:"false"`

	RateLimitEnabled      bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRedisEnabled bool          `env:"RATE_LIMIT_REDIS_ENABLED" envDefault:"false"`
	RateLimitRequests     int           `env:"RATE_LIMIT_REQUESTS" envDefault:"120"`
	RateLimitWindow       time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitFailOpen     bool          `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`
}

// Load parses environment variables into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run safely.
func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if len(c.WebhooksBackoffSchedule) == 0 {
		errs = append(errs, "WEBHOOKS_BACKOFF_SCHEDULE must not be empty")
	}
	for _, d := range c.WebhooksBackoffSchedule {
		if d <= 0 {
			errs = append(errs, "WEBHOOKS_BACKOFF_SCHEDULE entries must be positive")
			break
		}
	}
	if c.WebhooksMaxAttempts <= 0 {
		errs = append(errs, "WEBHOOKS_MAX_ATTEMPTS must be > 0")
	}
	if c.WebhooksBatchSize <= 0 {
		errs = append(errs, "WEBHOOKS_BATCH_SIZE must be > 0")
	}
	if c.WebhooksTimeout <= 0 {
		errs = append(errs, "WEBHOOKS_TIMEOUT must be > 0")
	}
	if c.WebhooksResponseBodyLimit <= 0 {
		errs = append(errs, "WEBHOOKS_RESPONSE_BODY_LIMIT must be > 0")
	}
	if c.IdempotencyRedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when IDEMPOTENCY_REDIS_ENABLED is set")
	}
	if c.RateLimitRedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when RATE_LIMIT_REDIS_ENABLED is set")
	}
	if c.RateLimitEnabled && (c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0) {
		errs = append(errs, "RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
