package hasher

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/coffeemasters/authcore/ports"
)

// DefaultCost keeps verification latency in the tens of milliseconds on
// current hardware.
const DefaultCost = 10

// dummyHash is a valid bcrypt hash of an unguessable value. Verifying
// against it burns the same work as a real comparison, so callers can keep
// response timing flat for unknown identities.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// BcryptHasher implements ports.PasswordHasher with bcrypt. bcrypt embeds a
// per-call random salt in the hash, so two hashes of the same password never
// match.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the default cost.
func NewBcryptHasher() ports.PasswordHasher {
	return &BcryptHasher{cost: DefaultCost}
}

// NewBcryptHasherWithCost creates a hasher with a custom cost. Costs below
// bcrypt's minimum are raised to it; tests use the minimum to stay fast.
func NewBcryptHasherWithCost(cost int) ports.PasswordHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash derives a salted hash from plaintext. The plaintext is never logged
// or retained.
func (h *BcryptHasher) Hash(plaintext string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// Verify reports whether plaintext matches hash. A nil or empty hash is
// compared against a fixed dummy hash so the call costs the same as a real
// verification and always fails.
func (h *BcryptHasher) Verify(plaintext string, hash []byte) bool {
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}
