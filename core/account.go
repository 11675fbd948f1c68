package core

import "time"

// Account represents a registered identity. The email is unique across all
// accounts. PasswordHash is nil for passwordless (passkey-only) accounts and
// is never exposed outside the store and the password hasher.
type Account struct {
	ID           string       // Unique account identifier, also the WebAuthn user handle
	Email        string       // Login identity, unique
	Name         string       // Display name
	PasswordHash []byte       // bcrypt hash, nil if no password is set
	Credentials  []Credential // Registered public-key credentials
	CreatedAt    time.Time    // When the account was registered
}

// HasPassword reports whether the account can authenticate with a password.
func (a *Account) HasPassword() bool {
	return len(a.PasswordHash) > 0
}

// HasCredentials reports whether the account has at least one passkey.
func (a *Account) HasCredentials() bool {
	return len(a.Credentials) > 0
}

// Credential is a WebAuthn public-key credential stored by the relying party.
// The ID is globally unique; SignCount must be strictly increasing across
// authentications unless the authenticator never implements a counter (both
// stored and reported counters stay zero).
type Credential struct {
	ID              []byte    // Credential identifier assigned by the authenticator
	AccountID       string    // Owning account
	PublicKey       []byte    // Public key in COSE format
	AttestationType string    // Attestation format used at registration
	Transports      []string  // Transport hints reported by the client
	AAGUID          []byte    // Authenticator model identifier
	SignCount       uint32    // Signature counter from the last successful assertion
	BackupEligible  bool      // Credential can be synced across devices
	BackupState     bool      // Credential is currently backed up
	CreatedAt       time.Time // When the credential was registered
	LastUsedAt      time.Time // When the credential last completed an assertion
}

// AuthOptions reports which login factors are usable for an identity. The
// struct shape is identical whether or not the identity exists, so the
// negotiation endpoint cannot be used to enumerate accounts.
type AuthOptions struct {
	Password bool `json:"password"`
	WebAuthn bool `json:"webauthn"`
}
