package domain

import "time"

// RoleName is the closed set of role names seeded at startup.
type RoleName string

const (
	RoleAdmin   RoleName = "admin"
	RolePatient RoleName = "patient"
	RoleDoctor  RoleName = "doctor"
)

// RoleNames lists every known role in seed order.
func RoleNames() []RoleName {
	return []RoleName{RoleAdmin, RolePatient, RoleDoctor}
}

func (n RoleName) Valid() bool {
	switch n {
	case RoleAdmin, RolePatient, RoleDoctor:
		return true
	}
	return false
}

type Role struct {
	RoleID    string     `json:"id" dynamodbav:"role_id"`
	Name      RoleName   `json:"name" dynamodbav:"name"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// RoleUser links a user to its single role. The user side is unique.
type RoleUser struct {
	UserID    string     `json:"user_id" dynamodbav:"user_id"`
	RoleID    string     `json:"role_id" dynamodbav:"role_id"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}
