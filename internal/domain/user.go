package domain

import "time"

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserStatusVerified    UserStatus = "verified"
	UserStatusNotVerified UserStatus = "not_verified"
	UserStatusBlocked     UserStatus = "blocked"
	UserStatusPending     UserStatus = "pending"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusVerified, UserStatusNotVerified, UserStatusBlocked, UserStatusPending:
		return true
	}
	return false
}

type User struct {
	UserID       string     `json:"id" dynamodbav:"user_id"`
	FirstName    string     `json:"first_name" dynamodbav:"first_name"`
	LastName     string     `json:"last_name" dynamodbav:"last_name"`
	Email        string     `json:"email" dynamodbav:"email"`
	PasswordHash string     `json:"-" dynamodbav:"password_hash"`
	Status       UserStatus `json:"status" dynamodbav:"status"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

type RegisterPatientRequest struct {
	FirstName            string `json:"first_name" validate:"required,max=255,alpha"`
	LastName             string `json:"last_name" validate:"required,max=255,alpha"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=8,max=88,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation"`
}
