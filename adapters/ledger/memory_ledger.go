package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/coffeemasters/authcore/core"
)

// MemoryChallengeLedger is an in-memory ChallengeLedger. Consumed challenges
// leave a tombstone until their expiry passes, so a second consume reports
// ErrChallengeUsed rather than ErrChallengeNotFound. Expired entries are
// purged lazily on consume and by Sweep.
type MemoryChallengeLedger struct {
	mu       sync.Mutex
	pending  map[string]*core.Challenge
	consumed map[string]time.Time // value -> original expiry
}

// NewMemoryChallengeLedger creates a new in-memory challenge ledger.
func NewMemoryChallengeLedger() *MemoryChallengeLedger {
	return &MemoryChallengeLedger{
		pending:  make(map[string]*core.Challenge),
		consumed: make(map[string]time.Time),
	}
}

// Issue records a challenge under its value.
func (l *MemoryChallengeLedger) Issue(ctx context.Context, challenge *core.Challenge) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dup := *challenge
	l.pending[challenge.Value] = &dup
	return nil
}

// Consume removes and returns the challenge for a value. Exactly one of two
// concurrent consumers wins; the loser sees ErrChallengeUsed.
func (l *MemoryChallengeLedger) Consume(ctx context.Context, value string) (*core.Challenge, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	challenge, ok := l.pending[value]
	if !ok {
		if expiry, used := l.consumed[value]; used {
			if now.After(expiry) {
				delete(l.consumed, value)
				return nil, core.ErrChallengeNotFound
			}
			return nil, core.ErrChallengeUsed
		}
		return nil, core.ErrChallengeNotFound
	}

	delete(l.pending, value)
	if challenge.Expired(now) {
		return nil, core.ErrChallengeExpired
	}

	l.consumed[value] = challenge.ExpiresAt
	return challenge, nil
}

// Sweep drops expired entries and returns how many were removed. Callers may
// run it periodically; the ledger stays correct without it because expiry is
// also checked on consume.
func (l *MemoryChallengeLedger) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	removed := 0
	for value, challenge := range l.pending {
		if challenge.Expired(now) {
			delete(l.pending, value)
			removed++
		}
	}
	for value, expiry := range l.consumed {
		if now.After(expiry) {
			delete(l.consumed, value)
			removed++
		}
	}
	return removed
}
