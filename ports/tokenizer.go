package ports

import "github.com/coffeemasters/authcore/core"

// Tokenizer converts between sessions and the signed tokens handed to
// clients.
type Tokenizer interface {
	// SessionToToken signs a session into its client-visible token.
	SessionToToken(session *core.Session) (string, error)

	// TokenToSession verifies a token and reconstructs the session. Returns
	// core.ErrSessionNotFound for malformed, mis-signed, or expired tokens.
	TokenToSession(token string) (*core.Session, error)
}
