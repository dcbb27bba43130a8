package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mentorly/backend/internal/auth"
	"github.com/mentorly/backend/internal/models"
)

type contextKey string

const ctxPrincipalKey contextKey = "principal"

// TokenValidator is the part of auth.Service the middleware needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (auth.Principal, error)
}

// BearerAuth validates the Bearer token and stores the caller's principal in
// the request context.
func BearerAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}
			p, err := v.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole lets the request through only when the principal has one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromCtx(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		})
	}
}

// PrincipalFromCtx returns the authenticated caller.
func PrincipalFromCtx(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey).(auth.Principal)
	return p, ok
}

// WithPrincipal returns a context carrying the given principal.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
