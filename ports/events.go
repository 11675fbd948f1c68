package ports

import (
	"context"

	"github.com/coffeemasters/authcore/core"
)

// EventPublisher publishes security audit events. Publication is
// best-effort: an audit failure never fails the authentication outcome it
// describes.
type EventPublisher interface {
	// PublishSecurityEvent emits an audit event.
	PublishSecurityEvent(ctx context.Context, event core.SecurityEvent) error
}
