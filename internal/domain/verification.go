package domain

import "time"

type VerificationType string

const (
	VerificationEmail VerificationType = "email"
	VerificationSMS   VerificationType = "sms"
)

// VerificationCode is a short-lived numeric secret. Rows are never updated; the newest row
// of a type is the authoritative one and it is valid while now < ExpiresAt.
type VerificationCode struct {
	CodeID    string           `json:"id" dynamodbav:"code_id"`
	UserID    string           `json:"user_id" dynamodbav:"user_id"`
	Type      VerificationType `json:"type" dynamodbav:"type"`
	Code      string           `json:"code" dynamodbav:"code"`
	ExpiresAt time.Time        `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt time.Time        `json:"created_at" dynamodbav:"created_at"`
}

func (v *VerificationCode) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
