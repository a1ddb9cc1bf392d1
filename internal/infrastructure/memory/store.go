package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-healthcare-api/internal/domain"
)

// Store is an in-memory domain.TxStore. Transactions take the write lock for their whole
// duration and work on a cloned snapshot that replaces the live state only on success.
type Store struct {
	mu sync.RWMutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

type state struct {
	users    map[string]domain.User
	emails   map[string]string // email -> user_id
	roles    map[string]domain.Role
	roleUser map[string]domain.RoleUser // user_id -> link
	tokens   map[string]domain.AccessToken
	codes    []domain.VerificationCode
}

func newState() *state {
	return &state{
		users:    make(map[string]domain.User),
		emails:   make(map[string]string),
		roles:    make(map[string]domain.Role),
		roleUser: make(map[string]domain.RoleUser),
		tokens:   make(map[string]domain.AccessToken),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.emails {
		c.emails[k] = v
	}
	for k, v := range st.roles {
		c.roles[k] = v
	}
	for k, v := range st.roleUser {
		c.roleUser[k] = v
	}
	for k, v := range st.tokens {
		c.tokens[k] = v
	}
	c.codes = append([]domain.VerificationCode(nil), st.codes...)
	return c
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.CredentialStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&view{st: snapshot}); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

func (s *Store) read() *view {
	return &view{st: s.st}
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().CreateUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUser(ctx, userID)
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().EmailExists(ctx, email)
}

func (s *Store) CreateRole(ctx context.Context, r *domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().CreateRole(ctx, r)
}

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListRoles(ctx)
}

func (s *Store) FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindRoleByName(ctx, name)
}

func (s *Store) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SetUserRoles(ctx, userID, roleIDs)
}

func (s *Store) UserRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().UserRoles(ctx, userID)
}

func (s *Store) CreateAccessToken(ctx context.Context, t *domain.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().CreateAccessToken(ctx, t)
}

func (s *Store) FindAccessToken(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindAccessToken(ctx, tokenHash)
}

func (s *Store) TouchAccessToken(ctx context.Context, tokenHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().TouchAccessToken(ctx, tokenHash, at)
}

func (s *Store) CreateVerificationCode(ctx context.Context, v *domain.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().CreateVerificationCode(ctx, v)
}

func (s *Store) FindActiveVerificationCode(ctx context.Context, userID string, t domain.VerificationType, now time.Time) (*domain.VerificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindActiveVerificationCode(ctx, userID, t, now)
}

// UserCount returns the number of stored users, soft-deleted ones included.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.users)
}

// VerificationCodes returns every code row stored for userID, oldest first.
func (s *Store) VerificationCodes(userID string) []domain.VerificationCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.VerificationCode
	for _, c := range s.st.codes {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// view implements domain.CredentialStore over a state without locking; callers hold the lock.
type view struct {
	st *state
}

func (v *view) CreateUser(_ context.Context, u *domain.User) error {
	if _, taken := v.st.emails[u.Email]; taken {
		return domain.ErrDuplicateEmail
	}
	if _, exists := v.st.users[u.UserID]; exists {
		return fmt.Errorf("user %s already exists: %w", u.UserID, domain.ErrConflict)
	}
	v.st.users[u.UserID] = *u
	v.st.emails[u.Email] = u.UserID
	return nil
}

func (v *view) GetUser(_ context.Context, userID string) (*domain.User, error) {
	u, ok := v.st.users[userID]
	if !ok || u.DeletedAt != nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (v *view) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := v.st.emails[email]
	return ok, nil
}

func (v *view) CreateRole(_ context.Context, r *domain.Role) error {
	for _, existing := range v.st.roles {
		if existing.Name == r.Name {
			return fmt.Errorf("role %s already exists: %w", r.Name, domain.ErrConflict)
		}
	}
	v.st.roles[r.RoleID] = *r
	return nil
}

func (v *view) ListRoles(_ context.Context) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(v.st.roles))
	for _, r := range v.st.roles {
		if r.DeletedAt == nil {
			roles = append(roles, r)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (v *view) FindRoleByName(_ context.Context, name domain.RoleName) (*domain.Role, error) {
	for _, r := range v.st.roles {
		if r.Name == name && r.DeletedAt == nil {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("role %s not found: %w", name, domain.ErrNotFound)
}

func (v *view) SetUserRoles(_ context.Context, userID string, roleIDs []string) error {
	if len(roleIDs) > 1 {
		return fmt.Errorf("a user holds exactly one role: %w", domain.ErrConflict)
	}
	if _, ok := v.st.users[userID]; !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if len(roleIDs) == 0 {
		delete(v.st.roleUser, userID)
		return nil
	}
	if r, ok := v.st.roles[roleIDs[0]]; !ok || r.DeletedAt != nil {
		return fmt.Errorf("role not found: %w", domain.ErrNotFound)
	}
	now := time.Now().UTC()
	link := domain.RoleUser{UserID: userID, RoleID: roleIDs[0], CreatedAt: now, UpdatedAt: now}
	if prev, ok := v.st.roleUser[userID]; ok {
		link.CreatedAt = prev.CreatedAt
	}
	v.st.roleUser[userID] = link
	return nil
}

func (v *view) UserRoles(_ context.Context, userID string) ([]domain.Role, error) {
	link, ok := v.st.roleUser[userID]
	if !ok || link.DeletedAt != nil {
		return []domain.Role{}, nil
	}
	r, ok := v.st.roles[link.RoleID]
	if !ok || r.DeletedAt != nil {
		return []domain.Role{}, nil
	}
	return []domain.Role{r}, nil
}

func (v *view) CreateAccessToken(_ context.Context, t *domain.AccessToken) error {
	if _, ok := v.st.tokens[t.TokenHash]; ok {
		return fmt.Errorf("access token already exists: %w", domain.ErrConflict)
	}
	if _, ok := v.st.users[t.UserID]; !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	v.st.tokens[t.TokenHash] = *t
	return nil
}

func (v *view) FindAccessToken(_ context.Context, tokenHash string) (*domain.AccessToken, error) {
	t, ok := v.st.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("access token not found: %w", domain.ErrNotFound)
	}
	return &t, nil
}

func (v *view) TouchAccessToken(_ context.Context, tokenHash string, at time.Time) error {
	t, ok := v.st.tokens[tokenHash]
	if !ok {
		return fmt.Errorf("access token not found: %w", domain.ErrNotFound)
	}
	t.LastUsedAt = &at
	v.st.tokens[tokenHash] = t
	return nil
}

func (v *view) CreateVerificationCode(_ context.Context, c *domain.VerificationCode) error {
	if _, ok := v.st.users[c.UserID]; !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	v.st.codes = append(v.st.codes, *c)
	return nil
}

func (v *view) FindActiveVerificationCode(_ context.Context, userID string, t domain.VerificationType, now time.Time) (*domain.VerificationCode, error) {
	for i := len(v.st.codes) - 1; i >= 0; i-- {
		c := v.st.codes[i]
		if c.UserID != userID || c.Type != t {
			continue
		}
		if c.Expired(now) {
			break
		}
		return &c, nil
	}
	return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
}
