package core

import "time"

// Session represents an authenticated browser session. The client only ever
// sees the signed token produced by the tokenizer; the session ID must also
// be present in the server-side session store for the token to resolve, so
// destroyed sessions stay dead even if the token is replayed.
type Session struct {
	ID        string // Unique session identifier (JWT ID)
	AccountID string // Owning account
	Email     string // Owning account's email, the token subject
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SecurityEvent is an audit record published for security-relevant outcomes.
// Clone detection and origin mismatches are reported generically to clients
// but must stay distinguishable in the audit trail.
type SecurityEvent struct {
	Kind         string    `json:"kind"`
	Email        string    `json:"email,omitempty"`
	CredentialID string    `json:"credential_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	At           time.Time `json:"at"`
}

// Audit event kinds.
const (
	EventLogin          = "auth.login"
	EventRegistration   = "auth.registration"
	EventLogout         = "auth.logout"
	EventCloneDetected  = "auth.clone_detected"
	EventOriginMismatch = "auth.origin_mismatch"
)
