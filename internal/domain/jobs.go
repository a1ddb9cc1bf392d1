package domain

// SendVerificationCodeJob asks the worker to issue and mail an email verification code.
type SendVerificationCodeJob struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}
