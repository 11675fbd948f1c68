package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

// RedisChallengeLedger is a Redis implementation of the ChallengeLedger
// interface. Single-use consumption rides on GETDEL, which is atomic on the
// server: of two concurrent consumers exactly one receives the payload. A
// short-lived tombstone key distinguishes an already-used challenge from one
// that never existed.
type RedisChallengeLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisChallengeLedger creates a new Redis challenge ledger.
func NewRedisChallengeLedger(client *redis.Client) ports.ChallengeLedger {
	return &RedisChallengeLedger{
		client: client,
		prefix: "authcore:challenge:",
	}
}

// Issue records a challenge under its value. The key TTL outlives the
// validity window slightly so an expired-but-present challenge reports
// ErrChallengeExpired instead of ErrChallengeNotFound.
func (l *RedisChallengeLedger) Issue(ctx context.Context, challenge *core.Challenge) error {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	ttl := time.Until(challenge.ExpiresAt) + time.Minute
	if ttl <= 0 {
		return core.ErrChallengeExpired
	}

	key := l.prefix + challenge.Value
	if err := l.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// Consume removes and returns the challenge for a value.
func (l *RedisChallengeLedger) Consume(ctx context.Context, value string) (*core.Challenge, error) {
	key := l.prefix + value

	payload, err := l.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		used, existsErr := l.client.Exists(ctx, l.usedKey(value)).Result()
		if existsErr != nil {
			return nil, fmt.Errorf("failed to check consumed challenge: %w", existsErr)
		}
		if used > 0 {
			return nil, core.ErrChallengeUsed
		}
		return nil, core.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	var challenge core.Challenge
	if err := json.Unmarshal([]byte(payload), &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	if challenge.Expired(time.Now()) {
		return nil, core.ErrChallengeExpired
	}

	// Tombstone so a replay of the same value is reported as used. Kept only
	// as long as the original expiry plus slack.
	tombstoneTTL := time.Until(challenge.ExpiresAt) + time.Minute
	if err := l.client.Set(ctx, l.usedKey(value), "1", tombstoneTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to record consumed challenge: %w", err)
	}

	return &challenge, nil
}

func (l *RedisChallengeLedger) usedKey(value string) string {
	return l.prefix + "used:" + value
}
