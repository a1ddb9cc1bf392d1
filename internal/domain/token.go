package domain

import "time"

// AccessToken is the stored half of an opaque bearer credential. Only the SHA-256 of the
// plaintext is kept; the plaintext is handed to the client once, at issuance.
type AccessToken struct {
	TokenID    string     `json:"id" dynamodbav:"token_id"`
	UserID     string     `json:"user_id" dynamodbav:"user_id"`
	Name       string     `json:"name" dynamodbav:"name"`
	TokenHash  string     `json:"-" dynamodbav:"token_hash"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" dynamodbav:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" dynamodbav:"created_at"`
}
