package core

import "time"

// CeremonyKind distinguishes the two WebAuthn ceremony types a challenge can
// be bound to. A challenge issued for one kind must not verify the other.
type CeremonyKind string

const (
	CeremonyRegistration   CeremonyKind = "registration"
	CeremonyAuthentication CeremonyKind = "authentication"
)

// Challenge is a single-use random value bound into a WebAuthn ceremony.
// Value is the base64url-encoded challenge embedded in the ceremony options;
// it is also the ledger lookup key. AccountID is empty for anonymous
// (discoverable-credential) authentication flows. Data carries the opaque
// ceremony state the verifier needs to finish the ceremony.
type Challenge struct {
	Value     string       // High-entropy challenge, base64url encoded
	AccountID string       // Owning account, empty for anonymous flows
	Kind      CeremonyKind // Ceremony the challenge was issued for
	IssuedAt  time.Time
	ExpiresAt time.Time
	Data      []byte // Marshaled ceremony session state
}

// Expired reports whether the challenge is outside its validity window.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
