package ports

import (
	"context"
	"time"
)

// SessionStore holds the server-side half of issued sessions. A session
// token only resolves while its ID is still present here, so deleting the
// record invalidates the session no matter what the client retained.
type SessionStore interface {
	// Put records a session ID for an account with a TTL.
	Put(ctx context.Context, sessionID, accountID string, ttl time.Duration) error

	// Get returns the account ID for a session ID.
	// Returns core.ErrSessionNotFound if absent or expired.
	Get(ctx context.Context, sessionID string) (string, error)

	// Delete removes a session record. Deleting an absent session is not an
	// error.
	Delete(ctx context.Context, sessionID string) error
}
