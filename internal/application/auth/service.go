package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-healthcare-api/internal/domain"
	pkgtoken "github.com/go-healthcare-api/internal/pkg/token"
)

// Service resolves opaque bearer tokens to users.
type Service interface {
	Authenticate(ctx context.Context, bearer string) (*domain.User, error)
}

type tokenStore interface {
	FindAccessToken(ctx context.Context, tokenHash string) (*domain.AccessToken, error)
	TouchAccessToken(ctx context.Context, tokenHash string, at time.Time) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	store tokenStore
	now   func() time.Time
}

func NewService(store tokenStore) Service {
	return &service{store: store, now: time.Now}
}

// Authenticate hashes the presented token and looks the hash up. Unknown tokens and
// tokens of deleted users both yield ErrUnauthorized. Recording last use is best effort.
func (s *service) Authenticate(ctx context.Context, bearer string) (*domain.User, error) {
	if bearer == "" {
		return nil, fmt.Errorf("missing token: %w", domain.ErrUnauthorized)
	}
	hash := pkgtoken.Hash(bearer)
	tok, err := s.store.FindAccessToken(ctx, hash)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, tok.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("token owner gone: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.TouchAccessToken(ctx, hash, s.now().UTC()); err != nil {
		slog.Warn("failed to record token use", "token_id", tok.TokenID, "err", err)
	}
	return u, nil
}
