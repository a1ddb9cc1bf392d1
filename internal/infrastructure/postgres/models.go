package postgres

import (
	"time"

	"github.com/go-healthcare-api/internal/domain"
)

// Soft deletion is an explicit nullable column, filtered by hand, so gorm's
// implicit DeletedAt scope never hides rows from the role join.

type userRow struct {
	ID           string     `gorm:"primaryKey;size:26"`
	FirstName    string     `gorm:"size:255;not null"`
	LastName     string     `gorm:"size:255;not null"`
	Email        string     `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string     `gorm:"size:255;not null"`
	Status       string     `gorm:"size:32;not null;default:not_verified"`
	DeletedAt    *time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type roleRow struct {
	ID        string     `gorm:"primaryKey;size:26"`
	Name      string     `gorm:"size:32;not null;uniqueIndex"`
	DeletedAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (roleRow) TableName() string { return "roles" }

// roleUserRow is keyed by user_id, which is what limits a user to one role.
type roleUserRow struct {
	UserID    string     `gorm:"primaryKey;size:26"`
	RoleID    string     `gorm:"size:26;not null;index"`
	DeletedAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User userRow `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Role roleRow `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
}

func (roleUserRow) TableName() string { return "role_user" }

type accessTokenRow struct {
	ID         string `gorm:"primaryKey;size:26"`
	UserID     string `gorm:"size:26;not null;index"`
	Name       string `gorm:"size:255;not null"`
	TokenHash  string `gorm:"size:64;not null;uniqueIndex"`
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time

	User userRow `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (accessTokenRow) TableName() string { return "personal_access_tokens" }

type verificationCodeRow struct {
	ID        string    `gorm:"primaryKey;size:26"`
	UserID    string    `gorm:"size:26;not null;index:idx_verification_codes_user_type"`
	Type      string    `gorm:"size:16;not null;index:idx_verification_codes_user_type"`
	Code      string    `gorm:"size:16;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User userRow `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (verificationCodeRow) TableName() string { return "verification_codes" }

func userFromDomain(u *domain.User) userRow {
	return userRow{
		ID:           u.UserID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Status:       string(u.Status),
		DeletedAt:    u.DeletedAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		UserID:       r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Status:       domain.UserStatus(r.Status),
		DeletedAt:    r.DeletedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r roleRow) toDomain() domain.Role {
	return domain.Role{
		RoleID:    r.ID,
		Name:      domain.RoleName(r.Name),
		DeletedAt: r.DeletedAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r accessTokenRow) toDomain() *domain.AccessToken {
	return &domain.AccessToken{
		TokenID:    r.ID,
		UserID:     r.UserID,
		Name:       r.Name,
		TokenHash:  r.TokenHash,
		LastUsedAt: r.LastUsedAt,
		CreatedAt:  r.CreatedAt,
	}
}

func (r verificationCodeRow) toDomain() *domain.VerificationCode {
	return &domain.VerificationCode{
		CodeID:    r.ID,
		UserID:    r.UserID,
		Type:      domain.VerificationType(r.Type),
		Code:      r.Code,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}
