package ports

import (
	"context"
	"time"

	"github.com/layer-3/tollgate/core"
)

// CredentialStore holds pending nonces and live sessions.
// Every method must be atomic for a single key.
type CredentialStore interface {
	// PutNonce inserts or overwrites the pending nonce of rec.Address
	PutNonce(ctx context.Context, rec core.NonceRecord) error
	// GetNonce returns core.ErrNonceMissing when no nonce is pending
	GetNonce(ctx context.Context, address string) (core.NonceRecord, error)
	// ConsumeNonce deletes the pending nonce only if it still equals nonce
	ConsumeNonce(ctx context.Context, address, nonce string) (bool, error)

	PutSession(ctx context.Context, token string, session core.Session) error
	// GetSession returns core.ErrSessionNotFound for unknown tokens
	GetSession(ctx context.Context, token string) (core.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Sweep removes every record that expired before now and returns how many
	Sweep(ctx context.Context, now time.Time) (int, error)
}
