package role

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/pkg/id"
)

type Service interface {
	List(ctx context.Context) ([]domain.Role, error)
	// Seed creates every known role that does not exist yet. It is idempotent.
	Seed(ctx context.Context) error
}

type roleStore interface {
	ListRoles(ctx context.Context) ([]domain.Role, error)
	FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error)
	CreateRole(ctx context.Context, r *domain.Role) error
}

type service struct {
	repo roleStore
}

func NewService(repo roleStore) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *service) Seed(ctx context.Context) error {
	for _, name := range domain.RoleNames() {
		_, err := s.repo.FindRoleByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("look up role %s: %w", name, err)
		}
		now := time.Now().UTC()
		r := &domain.Role{RoleID: id.New(), Name: name, CreatedAt: now, UpdatedAt: now}
		err = s.repo.CreateRole(ctx, r)
		if errors.Is(err, domain.ErrConflict) {
			// Another instance seeded it between the lookup and the write.
			slog.Info("role already seeded", "role", name)
			continue
		}
		if err != nil {
			return fmt.Errorf("create role %s: %w", name, err)
		}
		slog.Info("seeded role", "role", name, "role_id", r.RoleID)
	}
	return nil
}
