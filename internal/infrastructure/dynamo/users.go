package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/go-healthcare-api/internal/domain"
)

type emailLock struct {
	Email  string `dynamodbav:"email"`
	UserID string `dynamodbav:"user_id"`
}

// CreateUser writes the user row together with its user_emails lock item.
func (v *view) CreateUser(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	lock, err := attributevalue.MarshalMap(emailLock{Email: u.Email, UserID: u.UserID})
	if err != nil {
		return fmt.Errorf("marshal email lock: %w", err)
	}
	return v.write(ctx,
		putIfAbsent(v.tables.Users, fieldUserID, item, fmt.Errorf("user %s already exists: %w", u.UserID, domain.ErrConflict)),
		putIfAbsent(v.tables.UserEmails, fieldEmail, lock, domain.ErrDuplicateEmail),
	)
}

func (v *view) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	item, err := v.getItem(ctx, v.tables.Users, strKey(fieldUserID, userID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(item, &u); err != nil {
		return nil, err
	}
	if u.DeletedAt != nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (v *view) EmailExists(ctx context.Context, email string) (bool, error) {
	item, err := v.getItem(ctx, v.tables.UserEmails, strKey(fieldEmail, email))
	if err != nil {
		return false, err
	}
	return item != nil, nil
}
