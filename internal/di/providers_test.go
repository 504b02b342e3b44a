package di

import (
	"testing"
	"time"

	"github.com/ARamos00/nursery-tracker/internal/config"
	"github.com/ARamos00/nursery-tracker/internal/observability"
)

func TestProvideHTTPServer(t *testing.T) {
	cfg := &config.Config{HTTPPort: "9999"}
	srv := provideHTTPServer(cfg, nil)
	if srv.Addr != ":9999" {
		t.Fatalf("unexpected addr: %s", srv.Addr)
	}
	if srv.ReadTimeout.Seconds() != 10 {
		t.Fatalf("unexpected read timeout: %v", srv.ReadTimeout)
	}
}

func TestProvideDelivererConfig(t *testing.T) {
	cfg := &config.Config{
		WebhooksSignatureHeader:   "X-Webhook-Signature",
		WebhooksUserAgent:         "NurseryTracker/0.1",
		WebhooksTimeout:           15 * time.Second,
		WebhooksBatchSize:         50,
		WebhooksBackoffSchedule:   []time.Duration{time.Minute, 5 * time.Minute},
		WebhooksMaxAttempts:       5,
		WebhooksResponseBodyLimit: 8192,
	}
	dc := provideDelivererConfig(cfg)
	if dc.SignatureHeader != cfg.WebhooksSignatureHeader || dc.UserAgent != cfg.WebhooksUserAgent {
		t.Fatalf("unexpected deliverer config: %+v", dc)
	}
	if dc.MaxAttempts != 5 || len(dc.BackoffSchedule) != 2 {
		t.Fatalf("unexpected retry policy: %+v", dc)
	}
}

func TestProvideRateLimiter(t *testing.T) {
	logger := observability.NewLogger("error")

	if rl := provideRateLimiter(&config.Config{RateLimitEnabled: false}, logger); rl != nil {
		t.Fatal("expected nil limiter when rate limiting is disabled")
	}
	rl := provideRateLimiter(&config.Config{
		RateLimitEnabled:  true,
		RateLimitRequests: 120,
		RateLimitWindow:   time.Minute,
	}, logger)
	if rl == nil {
		t.Fatal("expected limiter when rate limiting is enabled")
	}
}
