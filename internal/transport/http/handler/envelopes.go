package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-healthcare-api/internal/pkg/validate"
)

const (
	statusSuccess = "Success"
	statusFailed  = "Failed"
)

// SuccessEnvelope wraps every 2xx response.
type SuccessEnvelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// FailedEnvelope wraps every error response. Errors is only set for validation failures.
type FailedEnvelope struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Errors  validate.FieldErrors `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, msg string, data interface{}) {
	writeJSON(w, status, SuccessEnvelope{Status: statusSuccess, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, FailedEnvelope{Status: statusFailed, Message: msg})
}

func writeValidation(w http.ResponseWriter, fe validate.FieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, FailedEnvelope{
		Status:  statusFailed,
		Message: "The given data was invalid.",
		Errors:  fe,
	})
}
