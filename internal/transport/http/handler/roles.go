package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-healthcare-api/internal/application/role"
)

// RoleHandler exposes the seeded roles.
type RoleHandler struct {
	svc role.Service
}

func NewRoleHandler(svc role.Service) *RoleHandler { return &RoleHandler{svc: svc} }

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("list roles", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeSuccess(w, http.StatusOK, "", roles)
}
