package user

import (
	"context"

	"github.com/go-healthcare-api/internal/domain"
)

// Profile is a user together with the names of its roles.
type Profile struct {
	User  domain.User
	Roles []domain.RoleName
}

type Service interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
}

type userStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UserRoles(ctx context.Context, userID string) ([]domain.Role, error)
}

type service struct {
	repo userStore
}

func NewService(repo userStore) Service {
	return &service{repo: repo}
}

func (s *service) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.repo.UserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]domain.RoleName, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return &Profile{User: *u, Roles: names}, nil
}
