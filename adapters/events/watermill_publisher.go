package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

// SecurityTopic carries audit events for authentication outcomes. Clone
// detection and origin mismatches land here so they stay distinguishable
// even though clients only ever see a generic failure.
const SecurityTopic = "authcore.security"

// WatermillPublisher implements the EventPublisher interface using Watermill,
// so the audit stream can ride any broker Watermill supports (Redis streams
// in the default deployment, an in-process channel in tests).
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill audit publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     SecurityTopic,
	}
}

// PublishSecurityEvent emits an audit event.
func (p *WatermillPublisher) PublishSecurityEvent(ctx context.Context, event core.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal security event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish security event: %w", err)
	}
	return nil
}
