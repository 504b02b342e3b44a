package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/repository"
)

type stubRecordStore struct {
	findFn   func(ctx context.Context, tuple repository.IdempotencyTuple) (*domain.IdempotencyRecord, error)
	insertFn func(ctx context.Context, rec *domain.IdempotencyRecord) error
}

func (s *stubRecordStore) Find(ctx context.Context, tuple repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
	return s.findFn(ctx, tuple)
}

func (s *stubRecordStore) Insert(ctx context.Context, rec *domain.IdempotencyRecord) error {
	return s.insertFn(ctx, rec)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gateTuple() repository.IdempotencyTuple {
	return repository.IdempotencyTuple{
		OwnerID:  1,
		Key:      "client-key",
		Method:   "POST",
		Path:     "/api/v1/plants",
		BodyHash: "hash",
	}
}

func successOp(body string) Operation {
	return func(ctx context.Context) (OperationResult, error) {
		return OperationResult{StatusCode: 201, ContentType: "application/json", Body: []byte(body)}, nil
	}
}

func TestGatePassthroughWithoutKey(t *testing.T) {
	store := &stubRecordStore{
		findFn: func(context.Context, repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
			t.Fatal("store must not be consulted without a key")
			return nil, nil
		},
	}
	gate := NewIdempotencyGate(store, discardLogger())

	tuple := gateTuple()
	tuple.Key = ""
	res, replayed, err := gate.Execute(context.Background(), tuple, successOp(`{"id":1}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if replayed {
		t.Fatal("passthrough must not be marked replayed")
	}
	if res.StatusCode != 201 {
		t.Fatalf("unexpected status: %d", res.StatusCode)
	}
}

func TestGateStoresFirstSuccessfulResult(t *testing.T) {
	var inserted *domain.IdempotencyRecord
	store := &stubRecordStore{
		findFn: func(context.Context, repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
			return nil, nil
		},
		insertFn: func(_ context.Context, rec *domain.IdempotencyRecord) error {
			inserted = rec
			return nil
		},
	}
	gate := NewIdempotencyGate(store, discardLogger())

	res, replayed, err := gate.Execute(context.Background(), gateTuple(), successOp(`{"id":1}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if replayed {
		t.Fatal("first execution must not be marked replayed")
	}
	if inserted == nil {
		t.Fatal("expected the result to be recorded")
	}
	if inserted.StatusCode != res.StatusCode || string(inserted.ResponseBody) != string(res.Body) {
		t.Fatalf("recorded triple does not match result: %+v", inserted)
	}
	if inserted.BodyHash != "hash" || inserted.IdempotencyKey != "client-key" {
		t.Fatalf("recorded tuple fields are wrong: %+v", inserted)
	}
}

func TestGateReplaysStoredResult(t *testing.T) {
	store := &stubRecordStore{
		findFn: func(_ context.Context, tuple repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
			return &domain.IdempotencyRecord{
				OwnerID:        tuple.OwnerID,
				IdempotencyKey: tuple.Key,
				StatusCode:     201,
				ContentType:    "application/json",
				ResponseBody:   []byte(`{"id":42}`),
			}, nil
		},
	}
	gate := NewIdempotencyGate(store, discardLogger())

	opRan := false
	res, replayed, err := gate.Execute(context.Background(), gateTuple(), func(ctx context.Context) (OperationResult, error) {
		opRan = true
		return OperationResult{}, nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if opRan {
		t.Fatal("replay must not re-run the operation")
	}
	if !replayed {
		t.Fatal("expected replayed flag")
	}
	if res.StatusCode != 201 || string(res.Body) != `{"id":42}` {
		t.Fatalf("unexpected replayed result: %+v", res)
	}
}

func TestGateDoesNotCacheFailures(t *testing.T) {
	insertCalled := false
	store := &stubRecordStore{
		findFn: func(context.Context, repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
			return nil, nil
		},
		insertFn: func(context.Context, *domain.IdempotencyRecord) error {
			insertCalled = true
			return nil
		},
	}
	gate := NewIdempotencyGate(store, discardLogger())

	res, replayed, err := gate.Execute(context.Background(), gateTuple(), func(ctx context.Context) (OperationResult, error) {
		return OperationResult{StatusCode: 422, ContentType: "application/json", Body: []byte(`{}`)}, nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if replayed || insertCalled {
		t.Fatal("non-2xx results must not be cached")
	}
	if res.StatusCode != 422 {
		t.Fatalf("unexpected status: %d", res.StatusCode)
	}
}

func TestGateServesWinnerOnInsertRace(t *testing.T) {
	findCalls := 0
	store := &stubRecordStore{
		findFn: func(_ context.Context, tuple repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
			findCalls++
			if findCalls == 1 {
				return nil, nil
			}
			return &domain.IdempotencyRecord{
				StatusCode:   201,
				ContentType:  "application/json",
				ResponseBody: []byte(`{"winner":true}`),
			}, nil
		},
		insertFn: func(context.Context, *domain.IdempotencyRecord) error {
			return repository.ErrDuplicateIdempotencyRecord
		},
	}
	gate := NewIdempotencyGate(store, discardLogger())

	res, replayed, err := gate.Execute(context.Background(), gateTuple(), successOp(`{"winner":false}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !replayed {
		t.Fatal("losing the insert race must serve the winner's record")
	}
	if string(res.Body) != `{"winner":true}` {
		t.Fatalf("expected the winner's body, got %s", res.Body)
	}
}

func TestGateDegradesOnStoreFailure(t *testing.T) {
	store := &stubRecordStore{
		findFn: func(context.Context, repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
	gate := NewIdempotencyGate(store, discardLogger())

	res, replayed, err := gate.Execute(context.Background(), gateTuple(), successOp(`{"id":1}`))
	if err != nil {
		t.Fatalf("storage outage must not fail the request, got %v", err)
	}
	if replayed {
		t.Fatal("degraded execution is not a replay")
	}
	if res.StatusCode != 201 {
		t.Fatalf("unexpected status: %d", res.StatusCode)
	}
}

func TestGateDegradesOnInsertFailure(t *testing.T) {
	store := &stubRecordStore{
		findFn: func(context.Context, repository.IdempotencyTuple) (*domain.IdempotencyRecord, error) {
			return nil, nil
		},
		insertFn: func(context.Context, *domain.IdempotencyRecord) error {
			return errors.New("disk full")
		},
	}
	gate := NewIdempotencyGate(store, discardLogger())

	res, replayed, err := gate.Execute(context.Background(), gateTuple(), successOp(`{"id":1}`))
	if err != nil {
		t.Fatalf("record write failure must not fail the request, got %v", err)
	}
	if replayed {
		t.Fatal("uncached execution is not a replay")
	}
	if string(res.Body) != `{"id":1}` {
		t.Fatalf("unexpected body: %s", res.Body)
	}
}
