package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/ARamos00/nursery-tracker/internal/config"
)

func TestSustainedRateLimitReturns429(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RateLimitEnabled = true
		cfg.RateLimitRequests = 3
		cfg.RateLimitWindow = time.Minute
	})

	for i := 0; i < 3; i++ {
		if res := env.do(t, 1, http.MethodGet, "/api/v1/plants", "", ""); res.Status != http.StatusOK {
			t.Fatalf("request %d inside the limit: %d", i+1, res.Status)
		}
	}

	limited := env.do(t, 1, http.MethodGet, "/api/v1/plants", "", "")
	if limited.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d", limited.Status)
	}
	if limited.Error == nil || limited.Error.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected error payload: %+v", limited.Error)
	}
	if limited.Header.Get("Retry-After") == "" {
		t.Fatal("429 must carry Retry-After")
	}

	// Limits are keyed per owner, so a different caller is unaffected.
	if res := env.do(t, 2, http.MethodGet, "/api/v1/plants", "", ""); res.Status != http.StatusOK {
		t.Fatalf("other owner must not share the bucket: %d", res.Status)
	}
}
