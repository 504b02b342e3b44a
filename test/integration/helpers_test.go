package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ARamos00/nursery-tracker/internal/app"
	"github.com/ARamos00/nursery-tracker/internal/config"
	"github.com/ARamos00/nursery-tracker/internal/database"
	"github.com/ARamos00/nursery-tracker/internal/http/handler"
	"github.com/ARamos00/nursery-tracker/internal/http/middleware"
	"github.com/ARamos00/nursery-tracker/internal/repository"
	"github.com/ARamos00/nursery-tracker/internal/service"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	router     http.Handler
	db         *gorm.DB
	cfg        *config.Config
	deliveries repository.WebhookDeliveryRepository
	deliverer  *service.WebhookDeliverer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Env:                       "test",
		JWTSecret:                 testJWTSecret,
		IdempotencyEnabled:        true,
		IdempotencyRetention:      24 * time.Hour,
		WebhooksDeliveryEnabled:   true,
		WebhooksSignatureHeader:   "X-Webhook-Signature",
		WebhooksUserAgent:         "NurseryTracker/0.1",
		WebhooksTimeout:           5 * time.Second,
		WebhooksBatchSize:         50,
		WebhooksBackoffSchedule:   []time.Duration{time.Minute, 5 * time.Minute},
		WebhooksMaxAttempts:       2,
		WebhooksResponseBodyLimit: 8192,
	}
	if mutate != nil {
		mutate(cfg)
	}

	log := discardLogger()
	plants := repository.NewPlantRepository(db)
	endpoints := repository.NewWebhookEndpointRepository(db)
	deliveries := repository.NewWebhookDeliveryRepository(db)
	idemRepo := repository.NewIdempotencyRepository(db)

	gate := service.NewIdempotencyGate(idemRepo, log)
	enqueuer := service.NewWebhookEnqueuer(endpoints, deliveries, log)
	plantSvc := service.NewPlantService(db, plants, enqueuer)
	deliverer := service.NewWebhookDeliverer(deliveries, service.DelivererConfig{
		SignatureHeader:   cfg.WebhooksSignatureHeader,
		UserAgent:         cfg.WebhooksUserAgent,
		Timeout:           cfg.WebhooksTimeout,
		BatchSize:         cfg.WebhooksBatchSize,
		BackoffSchedule:   cfg.WebhooksBackoffSchedule,
		MaxAttempts:       cfg.WebhooksMaxAttempts,
		ResponseBodyLimit: cfg.WebhooksResponseBodyLimit,
	}, log)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(
			middleware.NewLocalLimiter(),
			middleware.RateLimitPolicy{SustainedLimit: cfg.RateLimitRequests, SustainedWindow: cfg.RateLimitWindow},
			middleware.FailClosed,
			log,
		)
	}

	router := app.NewRouter(
		cfg,
		gate,
		limiter,
		handler.NewPlantHandler(plantSvc, cfg.EnforceIfMatch),
		handler.NewWebhookHandler(endpoints, deliveries, cfg.WebhooksRequireHTTPS),
	)

	return &testEnv{router: router, db: db, cfg: cfg, deliveries: deliveries, deliverer: deliverer}
}

func bearerToken(t *testing.T, ownerID uint) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": fmt.Sprintf("%d", ownerID),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type apiResponse struct {
	Status  int
	Header  http.Header
	Success bool
	Data    json.RawMessage
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
}

// do performs one request against the router as the given owner. A non-empty
// idempotencyKey rides along as the Idempotency-Key header; extra headers may
// follow as "Name: value" pairs.
func (e *testEnv) do(t *testing.T, ownerID uint, method, path, body, idempotencyKey string, headers ...string) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if ownerID != 0 {
		req.Header.Set("Authorization", "Bearer "+bearerToken(t, ownerID))
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ": ")
		if !ok {
			t.Fatalf("malformed header %q", h)
		}
		req.Header.Set(name, value)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	out := apiResponse{Status: rr.Code, Header: rr.Header()}
	if rr.Body.Len() == 0 {
		return out
	}
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s %s (%d): %v: %s", method, path, rr.Code, err, rr.Body.String())
	}
	out.Success = env.Success
	out.Data = env.Data
	out.Error = env.Error
	return out
}

func decodeData[T any](t *testing.T, res apiResponse) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(res.Data, &v); err != nil {
		t.Fatalf("decode data: %v: %s", err, string(res.Data))
	}
	return v
}
