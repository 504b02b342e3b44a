package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/repository"
)

// OperationResult is the captured outcome of a mutating operation: the triple
// that gets stored and later replayed verbatim.
type OperationResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Operation is the wrapped mutating operation, treated as a black box.
type Operation func(ctx context.Context) (OperationResult, error)

// IdempotencyRecordStore is the durable keyed storage contract the gate needs.
// The GORM repository satisfies it; a Redis-backed variant is available for
// deployments that prefer TTL-based expiry over batch pruning.
type IdempotencyRecordStore interface {
	Find(ctx context.Context, tuple repository.IdempotencyTuple) (*domain.IdempotencyRecord, error)
	Insert(ctx context.Context, rec *domain.IdempotencyRecord) error
}

// IdempotencyGate makes a non-idempotent operation safely retryable by
// persisting and replaying the first successful response for a request tuple.
type IdempotencyGate struct {
	store  IdempotencyRecordStore
	logger *slog.Logger
}

func NewIdempotencyGate(store IdempotencyRecordStore, logger *slog.Logger) *IdempotencyGate {
	return &IdempotencyGate{store: store, logger: logger}
}

// Execute runs op under idempotency bookkeeping for the given tuple. The
// returned bool reports whether the result was replayed from storage.
//
// The gate never fails the caller because the dedup layer is unavailable: any
// storage failure other than a uniqueness conflict degrades to serving the
// freshly computed result without caching it.
func (g *IdempotencyGate) Execute(ctx context.Context, tuple repository.IdempotencyTuple, op Operation) (OperationResult, bool, error) {
	if tuple.Key == "" || tuple.OwnerID == 0 {
		res, err := op(ctx)
		return res, false, err
	}

	rec, err := g.store.Find(ctx, tuple)
	if err != nil {
		g.logger.Warn("idempotency lookup failed, executing without dedup",
			"method", tuple.Method, "path", tuple.Path, "error", err)
		res, opErr := op(ctx)
		return res, false, opErr
	}
	if rec != nil {
		return resultFromRecord(rec), true, nil
	}

	res, err := op(ctx)
	if err != nil {
		return res, false, err
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		// Only successfully-executed operations are cached; failures are
		// reported synchronously and may be retried by the client.
		return res, false, nil
	}

	insertErr := g.store.Insert(ctx, &domain.IdempotencyRecord{
		OwnerID:        tuple.OwnerID,
		IdempotencyKey: tuple.Key,
		Method:         tuple.Method,
		Path:           tuple.Path,
		BodyHash:       tuple.BodyHash,
		StatusCode:     res.StatusCode,
		ContentType:    res.ContentType,
		ResponseBody:   res.Body,
	})
	if insertErr == nil {
		return res, false, nil
	}
	if errors.Is(insertErr, repository.ErrDuplicateIdempotencyRecord) {
		// A concurrent duplicate won the race; its record is authoritative.
		winner, findErr := g.store.Find(ctx, tuple)
		if findErr == nil && winner != nil {
			return resultFromRecord(winner), true, nil
		}
		g.logger.Warn("idempotency winner re-fetch failed, serving computed result",
			"method", tuple.Method, "path", tuple.Path, "error", findErr)
		return res, false, nil
	}
	g.logger.Warn("idempotency record insert failed, serving uncached result",
		"method", tuple.Method, "path", tuple.Path, "error", insertErr)
	return res, false, nil
}

func resultFromRecord(rec *domain.IdempotencyRecord) OperationResult {
	return OperationResult{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.ResponseBody,
	}
}
