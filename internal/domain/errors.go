package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

var (
	// ErrDuplicateEmail is returned when the users unique email constraint rejects a write.
	ErrDuplicateEmail = fmt.Errorf("email already taken: %w", ErrConflict)
	// ErrRoleNotConfigured means a seed role is missing. It points at a deployment defect, not user input.
	ErrRoleNotConfigured = errors.New("role not configured")
)
