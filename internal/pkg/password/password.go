package password

import (
	"fmt"

	"github.com/matthewhartstonge/argon2"
)

// Hasher produces salted argon2id hashes in PHC string format.
type Hasher struct {
	cfg argon2.Config
}

func NewHasher() *Hasher {
	return &Hasher{cfg: argon2.DefaultConfig()}
}

// NewHasherWithConfig allows cheaper parameters, e.g. in tests.
func NewHasherWithConfig(cfg argon2.Config) *Hasher {
	return &Hasher{cfg: cfg}
}

func (h *Hasher) Hash(plain string) (string, error) {
	encoded, err := h.cfg.HashEncoded([]byte(plain))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(encoded), nil
}

// Verify reports whether plain matches the encoded hash. Malformed hashes never match.
func (h *Hasher) Verify(plain, encoded string) bool {
	ok, err := argon2.VerifyEncoded([]byte(plain), []byte(encoded))
	return err == nil && ok
}
