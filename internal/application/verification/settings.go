package verification

import (
	"fmt"
	"time"
)

// Settings bound the generated codes. Values are copied into the worker at construction.
type Settings struct {
	MinCode int64
	MaxCode int64
	TTL     time.Duration
}

func DefaultSettings() Settings {
	return Settings{MinCode: 100000, MaxCode: 999999, TTL: 5 * time.Minute}
}

func (s Settings) validate() error {
	if s.MinCode < 0 || s.MaxCode < s.MinCode {
		return fmt.Errorf("invalid code range [%d, %d]", s.MinCode, s.MaxCode)
	}
	if s.TTL <= 0 {
		return fmt.Errorf("code TTL must be positive, got %s", s.TTL)
	}
	return nil
}

// ExpiryMinutes is the TTL as shown to the recipient.
func (s Settings) ExpiryMinutes() int {
	return int(s.TTL / time.Minute)
}
