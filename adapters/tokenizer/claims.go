package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the owning account reference.
// The JWT ID doubles as the server-side session store key.
type SessionClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"acct"`
}
