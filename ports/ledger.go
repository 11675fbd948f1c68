package ports

import (
	"context"

	"github.com/coffeemasters/authcore/core"
)

// ChallengeLedger issues and single-use-consumes ceremony challenges. The
// ledger exclusively owns challenge lifetimes: a challenge is usable exactly
// once and only within its validity window, and consumption is atomic: of
// two concurrent consumers exactly one wins.
type ChallengeLedger interface {
	// Issue records a challenge under its value.
	Issue(ctx context.Context, challenge *core.Challenge) error

	// Consume removes and returns the challenge for a value. It fails closed:
	// core.ErrChallengeNotFound if the value was never issued,
	// core.ErrChallengeExpired if the validity window has passed, and
	// core.ErrChallengeUsed if the value was already consumed.
	Consume(ctx context.Context, value string) (*core.Challenge, error)
}
