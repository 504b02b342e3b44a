package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/nursery?sslmode=disable")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "development" || cfg.HTTPPort != "8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected base defaults: %+v", cfg)
	}
	if !cfg.IdempotencyEnabled || cfg.IdempotencyRedisEnabled {
		t.Fatalf("unexpected idempotency defaults: %+v", cfg)
	}
	if cfg.IdempotencyRetention != 24*time.Hour {
		t.Fatalf("unexpected retention default: %v", cfg.IdempotencyRetention)
	}
	if cfg.WebhooksSignatureHeader != "X-Webhook-Signature" || cfg.WebhooksUserAgent != "NurseryTracker/0.1" {
		t.Fatalf("unexpected webhook defaults: %+v", cfg)
	}
	if cfg.WebhooksTimeout != 15*time.Second || cfg.WebhooksMaxAttempts != 5 || cfg.WebhooksResponseBodyLimit != 8192 {
		t.Fatalf("unexpected webhook defaults: %+v", cfg)
	}
	wantSchedule := []time.Duration{time.Minute, 5 * time.Minute, 30 * time.Minute, 2 * time.Hour, 24 * time.Hour}
	if len(cfg.WebhooksBackoffSchedule) != len(wantSchedule) {
		t.Fatalf("unexpected schedule length: %v", cfg.WebhooksBackoffSchedule)
	}
	for i, d := range wantSchedule {
		if cfg.WebhooksBackoffSchedule[i] != d {
			t.Fatalf("schedule[%d]: want %v, got %v", i, d, cfg.WebhooksBackoffSchedule[i])
		}
	}
	if cfg.EnforceIfMatch {
		t.Fatal("If-Match enforcement must default to best-effort")
	}
	if !cfg.RateLimitEnabled || cfg.RateLimitRedisEnabled || !cfg.RateLimitFailOpen {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg)
	}
	if cfg.RateLimitRequests != 120 || cfg.RateLimitWindow != time.Minute {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEBHOOKS_BACKOFF_SCHEDULE", "10s,30s")
	t.Setenv("WEBHOOKS_MAX_ATTEMPTS", "2")
	t.Setenv("ENFORCE_IF_MATCH", "true")
	t.Setenv("IDEMPOTENCY_REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.WebhooksBackoffSchedule) != 2 || cfg.WebhooksBackoffSchedule[1] != 30*time.Second {
		t.Fatalf("unexpected schedule: %v", cfg.WebhooksBackoffSchedule)
	}
	if cfg.WebhooksMaxAttempts != 2 {
		t.Fatalf("unexpected max attempts: %d", cfg.WebhooksMaxAttempts)
	}
	if !cfg.EnforceIfMatch || !cfg.IdempotencyRedisEnabled || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantMsg string
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, "JWT_SECRET"},
		{"empty backoff schedule", func(c *Config) { c.WebhooksBackoffSchedule = nil }, "WEBHOOKS_BACKOFF_SCHEDULE"},
		{"non-positive backoff entry", func(c *Config) { c.WebhooksBackoffSchedule = []time.Duration{0} }, "positive"},
		{"zero max attempts", func(c *Config) { c.WebhooksMaxAttempts = 0 }, "WEBHOOKS_MAX_ATTEMPTS"},
		{"zero batch size", func(c *Config) { c.WebhooksBatchSize = 0 }, "WEBHOOKS_BATCH_SIZE"},
		{"zero timeout", func(c *Config) { c.WebhooksTimeout = 0 }, "WEBHOOKS_TIMEOUT"},
		{"zero body limit", func(c *Config) { c.WebhooksResponseBodyLimit = 0 }, "WEBHOOKS_RESPONSE_BODY_LIMIT"},
		{"redis without addr", func(c *Config) { c.IdempotencyRedisEnabled = true; c.RedisAddr = "" }, "REDIS_ADDR"},
		{"rate limit redis without addr", func(c *Config) { c.RateLimitRedisEnabled = true; c.RedisAddr = "" }, "REDIS_ADDR"},
		{"zero rate limit budget", func(c *Config) { c.RateLimitEnabled = true; c.RateLimitRequests = 0 }, "RATE_LIMIT_REQUESTS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfigForTest()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func validConfigForTest() *Config {
	return &Config{
		Env:                       "test",
		HTTPPort:                  "8080",
		LogLevel:                  "info",
		DatabaseURL:               "postgres://localhost:5432/nursery",
		JWTSecret:                 "0123456789abcdef0123456789abcdef",
		IdempotencyEnabled:        true,
		RedisAddr:                 "localhost:6379",
		IdempotencyRetention:      24 * time.Hour,
		WebhooksDeliveryEnabled:   true,
		WebhooksSignatureHeader:   "X-Webhook-Signature",
		WebhooksUserAgent:         "NurseryTracker/0.1",
		WebhooksTimeout:           15 * time.Second,
		WebhooksBatchSize:         50,
		WebhooksBackoffSchedule:   []time.Duration{time.Minute},
		WebhooksMaxAttempts:       5,
		WebhooksResponseBodyLimit: 8192,
	}
}
