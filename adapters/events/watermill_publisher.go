package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/tollgate/ports"
)

const (
	TopicSessionIssued    = "tollgate.session.issued"
	TopicStreamAuthorized = "tollgate.stream.authorized"
)

// SessionIssuedEvent is published after a successful login.
// The bearer token itself is never part of an event.
type SessionIssuedEvent struct {
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// StreamAuthorizedEvent is published when a holder starts a stream
type StreamAuthorizedEvent struct {
	Address    string    `json:"address"`
	AssetID    string    `json:"asset_id"`
	Authorized time.Time `json:"authorized_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishSessionIssued publishes a session issued event
func (p *WatermillPublisher) PublishSessionIssued(ctx context.Context, address string, sessionID string) error {
	return p.publish(ctx, TopicSessionIssued, SessionIssuedEvent{
		Address:   address,
		SessionID: sessionID,
		IssuedAt:  time.Now().UTC(),
	})
}

// PublishStreamAuthorized publishes a stream authorized event
func (p *WatermillPublisher) PublishStreamAuthorized(ctx context.Context, address string, assetID string) error {
	return p.publish(ctx, TopicStreamAuthorized, StreamAuthorizedEvent{
		Address:    address,
		AssetID:    assetID,
		Authorized: time.Now().UTC(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishSessionIssued(context.Context, string, string) error    { return nil }
func (NopPublisher) PublishStreamAuthorized(context.Context, string, string) error { return nil }
