package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-healthcare-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

const roleKeyPrefix = "role:name:"

// RoleStore decorates a domain.TxStore with a read-through Redis cache for role lookups
// by name, including lookups made inside transactions. Misses are never cached, and a
// Redis failure falls back to the underlying store.
type RoleStore struct {
	domain.TxStore
	client *redis.Client
	ttl    time.Duration
}

func NewRoleStore(store domain.TxStore, client *redis.Client, ttl time.Duration) *RoleStore {
	return &RoleStore{TxStore: store, client: client, ttl: ttl}
}

func (s *RoleStore) FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	return s.lookup(ctx, s.TxStore, name)
}

func (s *RoleStore) CreateRole(ctx context.Context, r *domain.Role) error {
	if err := s.TxStore.CreateRole(ctx, r); err != nil {
		return err
	}
	s.forget(ctx, r.Name)
	return nil
}

func (s *RoleStore) RunInTx(ctx context.Context, fn func(tx domain.CredentialStore) error) error {
	return s.TxStore.RunInTx(ctx, func(tx domain.CredentialStore) error {
		return fn(&txView{CredentialStore: tx, cache: s})
	})
}

func (s *RoleStore) lookup(ctx context.Context, src domain.CredentialStore, name domain.RoleName) (*domain.Role, error) {
	key := roleKeyPrefix + string(name)
	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var r domain.Role
		if err := json.Unmarshal(raw, &r); err == nil {
			return &r, nil
		}
		slog.Warn("dropping unreadable cached role", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("role cache read failed", "key", key, "err", err)
	}

	r, err := src.FindRoleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(r); err == nil {
		if err := s.client.Set(ctx, key, b, s.ttl).Err(); err != nil {
			slog.Warn("role cache write failed", "key", key, "err", err)
		}
	}
	return r, nil
}

func (s *RoleStore) forget(ctx context.Context, name domain.RoleName) {
	if err := s.client.Del(ctx, roleKeyPrefix+string(name)).Err(); err != nil {
		slog.Warn("role cache invalidation failed", "role", name, "err", err)
	}
}

type txView struct {
	domain.CredentialStore
	cache *RoleStore
}

func (v *txView) FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	return v.cache.lookup(ctx, v.CredentialStore, name)
}
