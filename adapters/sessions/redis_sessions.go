package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

// RedisSessionStore is a Redis implementation of the SessionStore interface.
// Redis handles expiry through key TTLs.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a new Redis session store.
func NewRedisSessionStore(client *redis.Client) ports.SessionStore {
	return &RedisSessionStore{
		client: client,
		prefix: "authcore:session:",
	}
}

// Put records a session ID for an account with a TTL.
func (s *RedisSessionStore) Put(ctx context.Context, sessionID, accountID string, ttl time.Duration) error {
	key := s.prefix + sessionID
	if err := s.client.Set(ctx, key, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get returns the account ID for a session ID.
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	key := s.prefix + sessionID

	accountID, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return accountID, nil
}

// Delete removes a session record. Absent sessions are not an error.
func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
