package http

import (
	"context"

	"github.com/go-healthcare-api/internal/application/auth"
	"github.com/go-healthcare-api/internal/application/registration"
	"github.com/go-healthcare-api/internal/application/role"
	"github.com/go-healthcare-api/internal/application/user"
	"github.com/go-healthcare-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// RoleReader is the minimal interface the router requires to authorise by role.
type RoleReader interface {
	UserRoles(ctx context.Context, userID string) ([]domain.Role, error)
}

// Deps holds the application services the router exposes.
type Deps struct {
	Registration registration.Service
	Auth         auth.Service
	Users        user.Service
	Roles        role.Service
	RoleReader   RoleReader
	// Gatherer backs GET /metrics. The endpoint is not mounted when nil.
	Gatherer prometheus.Gatherer
}
