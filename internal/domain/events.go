package domain

// UserRegistered is emitted once per committed registration.
type UserRegistered struct {
	User User `json:"user"`
}
