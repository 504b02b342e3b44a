package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/repository"
	"github.com/ARamos00/nursery-tracker/internal/security"
)

// DelivererConfig controls one delivery worker.
//
// BackoffSchedule is explicit ordered data, not a formula, so observable
// retry timing stays exactly as configured.
type DelivererConfig struct {
	SignatureHeader   string
	UserAgent         string
	Timeout           time.Duration
	BatchSize         int
	BackoffSchedule   []time.Duration
	MaxAttempts       int
	ResponseBodyLimit int
}

// WebhookDeliverer performs one bounded pass over due QUEUED deliveries,
// POSTing HMAC-signed JSON and applying the retry/backoff policy. It is meant
// to be invoked repeatedly by an external scheduler; deliveries are
// at-least-once and receivers must dedupe on their side.
type WebhookDeliverer struct {
	deliveries repository.WebhookDeliveryRepository
	client     *http.Client
	cfg        DelivererConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewWebhookDeliverer(deliveries repository.WebhookDeliveryRepository, cfg DelivererConfig, logger *slog.Logger) *WebhookDeliverer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = len(cfg.BackoffSchedule)
	}
	return &WebhookDeliverer{
		deliveries: deliveries,
		client:     &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// canonicalJSON re-encodes a stored payload with stable key ordering so the
// signed bytes are deterministic across attempts.
func canonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// RunOnce selects and attempts due deliveries, oldest first, up to the batch
// size. A failure in one delivery never aborts the rest of the batch.
// Returns the number of deliveries processed.
func (w *WebhookDeliverer) RunOnce(ctx context.Context) (int, error) {
	due, err := w.deliveries.ListDue(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due deliveries: %w", err)
	}
	for i := range due {
		w.processOne(ctx, &due[i])
	}
	return len(due), nil
}

func (w *WebhookDeliverer) processOne(ctx context.Context, d *domain.WebhookDelivery) {
	if d.Endpoint == nil {
		// Endpoint row is gone; retrying can never succeed.
		now := w.now()
		d.AttemptCount++
		d.LastAttemptAt = &now
		d.Status = domain.WebhookDeliveryStatusFailed
		d.NextAttemptAt = nil
		d.LastError = "endpoint missing"
		w.persist(ctx, d)
		return
	}

	body, err := canonicalJSON(d.Payload)
	if err != nil {
		now := w.now()
		d.AttemptCount++
		d.LastAttemptAt = &now
		w.scheduleRetry(d, fmt.Sprintf("serialize payload: %v", err))
		w.persist(ctx, d)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint.URL, bytes.NewReader(body))
	if err != nil {
		now := w.now()
		d.AttemptCount++
		d.LastAttemptAt = &now
		w.scheduleRetry(d, fmt.Sprintf("build request: %v", err))
		w.persist(ctx, d)
		return
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	req.Header.Set(w.cfg.SignatureHeader, security.SignPayload(d.Endpoint.Secret, body))

	started := w.now()
	resp, err := w.client.Do(req)
	attemptedAt := w.now()
	d.DurationMS = attemptedAt.Sub(started).Milliseconds()
	d.LastAttemptAt = &attemptedAt
	d.AttemptCount++

	if err != nil {
		// Timeouts and transport errors follow the same retry policy as
		// non-2xx responses.
		d.ResponseStatus = nil
		d.ResponseHeaders = nil
		d.ResponseBody = ""
		w.scheduleRetry(d, err.Error())
		w.persist(ctx, d)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, int64(w.cfg.ResponseBodyLimit)))
	status := resp.StatusCode
	d.ResponseStatus = &status
	d.ResponseHeaders = encodeHeaders(resp.Header)
	d.ResponseBody = string(respBody)

	if status >= 200 && status < 300 {
		d.Status = domain.WebhookDeliveryStatusSent
		d.NextAttemptAt = nil
		d.LastError = ""
		w.logger.Info("webhook delivered",
			"delivery_id", d.ID, "endpoint_id", d.EndpointID, "status", status, "attempt", d.AttemptCount)
	} else {
		w.scheduleRetry(d, fmt.Sprintf("HTTP %d", status))
	}
	w.persist(ctx, d)
}

// scheduleRetry decides between another attempt and the dead-letter state.
// attempt_count is 1-based at this point; the corresponding schedule entry
// (or the last one) provides the delay.
func (w *WebhookDeliverer) scheduleRetry(d *domain.WebhookDelivery, reason string) {
	d.LastError = reason
	if d.AttemptCount >= w.cfg.MaxAttempts {
		d.Status = domain.WebhookDeliveryStatusFailed
		d.NextAttemptAt = nil
		w.logger.Warn("webhook delivery dead-lettered",
			"delivery_id", d.ID, "endpoint_id", d.EndpointID, "attempts", d.AttemptCount, "error", reason)
		return
	}
	idx := d.AttemptCount
	if idx > len(w.cfg.BackoffSchedule) {
		idx = len(w.cfg.BackoffSchedule)
	}
	next := w.now().Add(w.cfg.BackoffSchedule[idx-1])
	d.NextAttemptAt = &next
	d.Status = domain.WebhookDeliveryStatusQueued
	w.logger.Info("webhook delivery retry scheduled",
		"delivery_id", d.ID, "endpoint_id", d.EndpointID, "attempt", d.AttemptCount, "next_attempt_at", next, "error", reason)
}

func (w *WebhookDeliverer) persist(ctx context.Context, d *domain.WebhookDelivery) {
	if err := w.deliveries.Update(ctx, d); err != nil {
		w.logger.Error("persist delivery bookkeeping failed", "delivery_id", d.ID, "error", err)
	}
}

func encodeHeaders(h http.Header) []byte {
	flat := make(map[string]string, len(h))
	for k := range h {
		flat[k] = h.Get(k)
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return nil
	}
	return raw
}
