package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-healthcare-api/internal/application/user"
	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/transport/http/middleware"
)

// UserHandler serves the authenticated user's own profile.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

type profileResponse struct {
	domain.User
	Roles []domain.RoleName `json:"roles"`
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	p, err := h.svc.Profile(r.Context(), u.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	if err != nil {
		slog.Error("load profile", "user_id", u.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeSuccess(w, http.StatusOK, "", profileResponse{User: p.User, Roles: p.Roles})
}
