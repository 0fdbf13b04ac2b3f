package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishSessionIssued(ctx context.Context, address string, sessionID string) error
	PublishStreamAuthorized(ctx context.Context, address string, assetID string) error
}
