package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/ARamos00/nursery-tracker/internal/repository"
	"github.com/ARamos00/nursery-tracker/internal/service"
)

// ReplayedHeader marks responses that were served from an idempotency record
// instead of executing the handler.
const ReplayedHeader = "X-Idempotency-Replayed"

// Idempotency wraps mutating requests carrying an Idempotency-Key header in
// the gate. Requests without a key, or from unauthenticated callers, pass
// straight through with no bookkeeping.
//
// The handler's response is buffered in full before anything is committed to
// the client: when a concurrent duplicate wins the insert race, the buffered
// response is discarded and the winning record is replayed instead.
func Idempotency(gate *service.IdempotencyGate, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			ownerID, authed := OwnerID(r.Context())
			if key == "" || !authed {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := io.ReadAll(r.Body)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			sum := sha256.Sum256(raw)

			tuple := repository.IdempotencyTuple{
				OwnerID:  ownerID,
				Key:      key,
				Method:   r.Method,
				Path:     r.URL.Path,
				BodyHash: hex.EncodeToString(sum[:]),
			}

			rec := &responseRecorder{header: make(http.Header)}
			op := func(ctx context.Context) (service.OperationResult, error) {
				next.ServeHTTP(rec, r.WithContext(ctx))
				return rec.result(), nil
			}

			res, replayed, err := gate.Execute(r.Context(), tuple, op)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if replayed {
				if res.ContentType != "" {
					w.Header().Set("Content-Type", res.ContentType)
				}
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(res.StatusCode)
				_, _ = w.Write(res.Body)
				return
			}
			// Fresh execution: flush the buffered response, headers included.
			for k, vals := range rec.header {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(res.StatusCode)
			_, _ = w.Write(res.Body)
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseRecorder buffers a handler's full response so the middleware can
// decide afterwards whether to commit or replace it.
type responseRecorder struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func (rec *responseRecorder) Header() http.Header { return rec.header }

func (rec *responseRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
}

func (rec *responseRecorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.buf.Write(p)
}

func (rec *responseRecorder) result() service.OperationResult {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	return service.OperationResult{
		StatusCode:  status,
		ContentType: rec.header.Get("Content-Type"),
		Body:        append([]byte(nil), rec.buf.Bytes()...),
	}
}
