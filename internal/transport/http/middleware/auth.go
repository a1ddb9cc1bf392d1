package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-healthcare-api/internal/domain"
)

type contextKey string

const userKey contextKey = "user"

type authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*domain.User, error)
}

// Auth returns middleware that resolves the Bearer access token and injects the user into context.
func Auth(authn authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			u, err := authn.Authenticate(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if errors.Is(err, domain.ErrUnauthorized) {
				writeJSONError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			if err != nil {
				slog.Error("authenticate request", "err", err)
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok
}
