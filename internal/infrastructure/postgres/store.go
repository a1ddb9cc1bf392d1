package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-healthcare-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the Postgres domain.TxStore. Inside RunInTx the same type is bound to the
// transaction handle, so reads observe the transaction's own writes.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.CredentialStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// mapErr translates gorm sentinels into domain errors.
func mapErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s not found: %w", what, domain.ErrNotFound)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s references a missing row: %w", what, domain.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s already exists: %w", what, domain.ErrConflict)
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	row := userFromDomain(u)
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateEmail
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("id = ? AND deleted_at IS NULL", userID).First(&row).Error
	if err != nil {
		return nil, mapErr(err, "user")
	}
	return row.toDomain(), nil
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", email).Count(&n).Error
	return n > 0, err
}

func (s *Store) CreateRole(ctx context.Context, r *domain.Role) error {
	row := roleRow{ID: r.RoleID, Name: string(r.Name), DeletedAt: r.DeletedAt, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	return mapErr(s.db.WithContext(ctx).Create(&row).Error, "role")
}

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	var rows []roleRow
	if err := s.db.WithContext(ctx).Where("deleted_at IS NULL").Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]domain.Role, len(rows))
	for i, r := range rows {
		roles[i] = r.toDomain()
	}
	return roles, nil
}

func (s *Store) FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	var row roleRow
	err := s.db.WithContext(ctx).Where("name = ? AND deleted_at IS NULL", string(name)).First(&row).Error
	if err != nil {
		return nil, mapErr(err, "role "+string(name))
	}
	r := row.toDomain()
	return &r, nil
}

// SetUserRoles upserts on the role_user primary key, so the previous role is replaced.
func (s *Store) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	db := s.db.WithContext(ctx)
	switch len(roleIDs) {
	case 0:
		return db.Where("user_id = ?", userID).Delete(&roleUserRow{}).Error
	case 1:
	default:
		return fmt.Errorf("a user holds exactly one role: %w", domain.ErrConflict)
	}
	var live int64
	err := db.Model(&roleRow{}).Where("id = ? AND deleted_at IS NULL", roleIDs[0]).Count(&live).Error
	if err != nil {
		return err
	}
	if live == 0 {
		return fmt.Errorf("role not found: %w", domain.ErrNotFound)
	}
	row := roleUserRow{UserID: userID, RoleID: roleIDs[0]}
	err = db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role_id", "deleted_at", "updated_at"}),
	}).Create(&row).Error
	return mapErr(err, "role_user")
}

func (s *Store) UserRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	var rows []roleRow
	err := s.db.WithContext(ctx).
		Select("roles.*").
		Joins("JOIN role_user ON role_user.role_id = roles.id").
		Where("role_user.user_id = ? AND role_user.deleted_at IS NULL AND roles.deleted_at IS NULL", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	roles := make([]domain.Role, len(rows))
	for i, r := range rows {
		roles[i] = r.toDomain()
	}
	return roles, nil
}

func (s *Store) CreateAccessToken(ctx context.Context, t *domain.AccessToken) error {
	row := accessTokenRow{ID: t.TokenID, UserID: t.UserID, Name: t.Name, TokenHash: t.TokenHash, LastUsedAt: t.LastUsedAt, CreatedAt: t.CreatedAt}
	return mapErr(s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error, "access token")
}

func (s *Store) FindAccessToken(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	var row accessTokenRow
	if err := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&row).Error; err != nil {
		return nil, mapErr(err, "access token")
	}
	return row.toDomain(), nil
}

func (s *Store) TouchAccessToken(ctx context.Context, tokenHash string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&accessTokenRow{}).Where("token_hash = ?", tokenHash).Update("last_used_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("access token not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateVerificationCode(ctx context.Context, c *domain.VerificationCode) error {
	row := verificationCodeRow{ID: c.CodeID, UserID: c.UserID, Type: string(c.Type), Code: c.Code, ExpiresAt: c.ExpiresAt, CreatedAt: c.CreatedAt}
	return mapErr(s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error, "verification code")
}

// FindActiveVerificationCode orders by the ULID primary key, which sorts by creation time.
func (s *Store) FindActiveVerificationCode(ctx context.Context, userID string, t domain.VerificationType, now time.Time) (*domain.VerificationCode, error) {
	var row verificationCodeRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, string(t)).
		Order("id DESC").
		Take(&row).Error
	if err != nil {
		return nil, mapErr(err, "verification code")
	}
	code := row.toDomain()
	if code.Expired(now) {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	return code, nil
}
