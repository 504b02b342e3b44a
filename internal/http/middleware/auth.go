package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ARamos00/nursery-tracker/internal/http/response"
)

type contextKey int

const ownerIDKey contextKey = iota

// OwnerID returns the authenticated owner id for the request, if any. Owner
// identity is threaded through the request context explicitly; nothing in the
// pipeline relies on process-global state.
func OwnerID(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(ownerIDKey).(uint)
	return id, ok
}

// WithOwnerID returns a context carrying the owner id. Exposed for tests and
// for collaborators that invoke services outside the HTTP stack.
func WithOwnerID(ctx context.Context, ownerID uint) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// Authenticator resolves the owner from an HS256 bearer token's `sub` claim.
// Requests without a valid token are rejected; the broader auth system (login,
// refresh, roles) lives outside this service.
func Authenticator(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(raw, "Bearer ") {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

			parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !parsed.Valid {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
				return
			}

			sub, err := parsed.Claims.GetSubject()
			if err != nil || sub == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "token missing subject", nil)
				return
			}
			ownerID, err := strconv.ParseUint(sub, 10, 32)
			if err != nil || ownerID == 0 {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid subject", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), uint(ownerID))))
		})
	}
}
