package domain

import (
	"context"
	"time"
)

// CredentialStore persists users, roles, access tokens and verification codes.
// Implementations return ErrNotFound for missing or soft-deleted rows and
// ErrDuplicateEmail when the unique email constraint rejects a user.
type CredentialStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	CreateRole(ctx context.Context, r *Role) error
	ListRoles(ctx context.Context) ([]Role, error)
	FindRoleByName(ctx context.Context, name RoleName) (*Role, error)
	// SetUserRoles replaces the user's role association. An empty slice detaches it.
	SetUserRoles(ctx context.Context, userID string, roleIDs []string) error
	UserRoles(ctx context.Context, userID string) ([]Role, error)

	CreateAccessToken(ctx context.Context, t *AccessToken) error
	FindAccessToken(ctx context.Context, tokenHash string) (*AccessToken, error)
	TouchAccessToken(ctx context.Context, tokenHash string, at time.Time) error

	CreateVerificationCode(ctx context.Context, v *VerificationCode) error
	// FindActiveVerificationCode returns the newest code of the given type when it has not expired at now.
	FindActiveVerificationCode(ctx context.Context, userID string, t VerificationType, now time.Time) (*VerificationCode, error)
}

// TxStore is a CredentialStore that can scope writes to one atomic unit.
// If fn returns an error nothing written through tx is kept.
type TxStore interface {
	CredentialStore
	RunInTx(ctx context.Context, fn func(tx CredentialStore) error) error
}
