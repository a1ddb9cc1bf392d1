package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-healthcare-api/internal/application/registration"
	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/pkg/validate"
)

const (
	msgPatientCreated = "Patient Created Successfuly, Check your mail for verification."
	msgEmailTaken     = "The email has already been taken."
)

// RegisterHandler handles patient self-registration.
type RegisterHandler struct {
	svc registration.Service
}

func NewRegisterHandler(svc registration.Service) *RegisterHandler {
	return &RegisterHandler{svc: svc}
}

type registeredPatient struct {
	domain.User
	AccessToken string `json:"access_token"`
}

func (h *RegisterHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)

	fe, err := h.validate(r.Context(), &req)
	if err != nil {
		slog.Error("validate registration", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	reg, err := h.svc.RegisterPatient(r.Context(), registration.Input{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		// Lost the race against a concurrent registration after the pre-check passed.
		writeValidation(w, validate.FieldErrors{"email": {msgEmailTaken}})
		return
	case errors.Is(err, domain.ErrRoleNotConfigured):
		slog.Error("patient registration unavailable, roles are not seeded", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	case err != nil:
		slog.Error("register patient", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeSuccess(w, http.StatusCreated, msgPatientCreated, registeredPatient{
		User:        reg.User,
		AccessToken: reg.AccessToken,
	})
}

// validate runs the struct rules and then the uniqueness rule, which needs the store.
// The returned error is only set for infrastructure failures.
func (h *RegisterHandler) validate(ctx context.Context, req *domain.RegisterPatientRequest) (validate.FieldErrors, error) {
	fe := validate.FieldErrors{}
	if err := validate.Struct(req); err != nil {
		if !errors.As(err, &fe) {
			return nil, err
		}
	}
	if _, bad := fe["email"]; bad {
		return fe, nil
	}
	taken, err := h.svc.EmailTaken(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		fe.Add("email", msgEmailTaken)
	}
	return fe, nil
}
