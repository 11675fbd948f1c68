package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

type sessionEntry struct {
	accountID string
	expiresAt time.Time
}

// MemorySessionStore is an in-memory implementation of the SessionStore
// interface. Expired entries are dropped lazily on read.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() ports.SessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]sessionEntry),
	}
}

// Put records a session ID for an account with a TTL.
func (s *MemorySessionStore) Put(ctx context.Context, sessionID, accountID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = sessionEntry{
		accountID: accountID,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get returns the account ID for a session ID.
func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return "", core.ErrSessionNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return "", core.ErrSessionNotFound
	}
	return entry.accountID, nil
}

// Delete removes a session record. Absent sessions are not an error.
func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}
