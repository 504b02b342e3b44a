package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ARamos00/nursery-tracker/internal/http/response"
)

// RateLimitPolicy combines a sustained request budget over a sliding window
// with a token bucket that absorbs short bursts.
type RateLimitPolicy struct {
	SustainedLimit    int
	SustainedWindow   time.Duration
	BurstCapacity     int
	BurstRefillPerSec float64
}

// Decision is one limiter verdict for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

// Limiter decides whether a keyed request may proceed under a policy.
type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

// FailureMode controls behavior when the limiter backend is unreachable.
type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

func normalizePolicy(p RateLimitPolicy) RateLimitPolicy {
	if p.SustainedLimit <= 0 {
		p.SustainedLimit = 1
	}
	if p.SustainedWindow <= 0 {
		p.SustainedWindow = time.Second
	}
	if p.BurstCapacity <= 0 {
		p.BurstCapacity = p.SustainedLimit
	}
	if p.BurstRefillPerSec <= 0 {
		p.BurstRefillPerSec = float64(p.SustainedLimit) / p.SustainedWindow.Seconds()
	}
	return p
}

// RateLimiter is the HTTP middleware wrapper around a Limiter. It runs after
// authentication so requests are keyed per owner; unauthenticated requests
// fall back to the client IP.
type RateLimiter struct {
	limiter Limiter
	policy  RateLimitPolicy
	mode    FailureMode
	logger  *slog.Logger
	keyFunc func(r *http.Request) string
}

func NewRateLimiter(limiter Limiter, policy RateLimitPolicy, mode FailureMode, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		policy:  normalizePolicy(policy),
		mode:    mode,
		logger:  logger,
		keyFunc: OwnerOrIPKey,
	}
}

// OwnerOrIPKey keys the limiter by the authenticated owner when present, else
// by the client IP.
func OwnerOrIPKey(r *http.Request) string {
	if ownerID, ok := OwnerID(r.Context()); ok {
		return fmt.Sprintf("owner:%d", ownerID)
	}
	return "ip:" + clientIP(r)
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := rl.limiter.Allow(r.Context(), rl.keyFunc(r), rl.policy)
			if err != nil {
				if rl.mode == FailOpen {
					rl.logger.Warn("rate limiter backend unavailable, allowing request", "error", err)
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("Retry-After", retryAfterSeconds(rl.policy.SustainedWindow))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			if !decision.Allowed {
				w.Header().Set("Retry-After", retryAfterSeconds(decision.RetryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type localBucket struct {
	tokens      float64
	lastRefill  time.Time
	windowCount int
	windowStart time.Time
}

// LocalLimiter is the in-process fallback used when Redis is not configured.
// Its decisions only cover one process; multi-instance deployments should use
// the Redis limiter.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	sweep   time.Time
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*localBucket),
		sweep:   time.Now().Add(time.Minute),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.sweep) {
		for k, b := range l.buckets {
			if now.Sub(b.windowStart) > 2*policy.SustainedWindow {
				delete(l.buckets, k)
			}
		}
		l.sweep = now.Add(policy.SustainedWindow)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{tokens: float64(policy.BurstCapacity), lastRefill: now, windowStart: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * policy.BurstRefillPerSec
	if b.tokens > float64(policy.BurstCapacity) {
		b.tokens = float64(policy.BurstCapacity)
	}
	b.lastRefill = now

	if now.Sub(b.windowStart) >= policy.SustainedWindow {
		b.windowCount = 0
		b.windowStart = now
	}

	if b.tokens < 1 || b.windowCount >= policy.SustainedLimit {
		retry := b.windowStart.Add(policy.SustainedWindow).Sub(now)
		if retry <= 0 {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry, Remaining: 0, ResetAt: now.Add(retry)}, nil
	}

	b.tokens--
	b.windowCount++
	remaining := policy.SustainedLimit - b.windowCount
	if int(b.tokens) < remaining {
		remaining = int(b.tokens)
	}
	return Decision{
		Allowed:    true,
		RetryAfter: time.Second,
		Remaining:  remaining,
		ResetAt:    b.windowStart.Add(policy.SustainedWindow),
	}, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
