package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-healthcare-api/internal/domain"
)

type roleLookup interface {
	UserRoles(ctx context.Context, userID string) ([]domain.Role, error)
}

// RequireRole returns middleware that allows access only to users holding one of the
// provided roles. It must run after Auth.
func RequireRole(lookup roleLookup, allowedRoles ...domain.RoleName) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			roles, err := lookup.UserRoles(r.Context(), u.UserID)
			if err != nil {
				slog.Error("load user roles", "user_id", u.UserID, "err", err)
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			for _, have := range roles {
				for _, want := range allowedRoles {
					if have.Name == want {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			writeJSONError(w, http.StatusForbidden, "This action is unauthorized.")
		})
	}
}
