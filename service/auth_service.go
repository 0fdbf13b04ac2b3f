package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/layer-3/tollgate/ports"
	"go.uber.org/zap"
)

const (
	DefaultNonceTTL   = 5 * time.Minute
	DefaultSessionTTL = 30 * time.Minute

	nonceBytes = 16
)

// AuthService issues challenges and exchanges signed challenges for sessions
type AuthService struct {
	store     ports.CredentialStore
	tokenizer ports.Tokenizer
	verifier  *SignatureVerifier
	eventPub  ports.EventPublisher
	logger    *zap.Logger

	appTag     string
	nonceTTL   time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// AuthOption customises an AuthService
type AuthOption func(*AuthService)

// WithNonceTTL overrides how long a challenge stays valid
func WithNonceTTL(d time.Duration) AuthOption {
	return func(s *AuthService) { s.nonceTTL = d }
}

// WithSessionTTL overrides how long a session token stays valid
func WithSessionTTL(d time.Duration) AuthOption {
	return func(s *AuthService) { s.sessionTTL = d }
}

// WithAppTag sets the first line of the challenge message
func WithAppTag(tag string) AuthOption {
	return func(s *AuthService) { s.appTag = tag }
}

// WithClock replaces time.Now, used by tests
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store ports.CredentialStore,
	tokenizer ports.Tokenizer,
	verifier *SignatureVerifier,
	eventPub ports.EventPublisher,
	logger *zap.Logger,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		store:      store,
		tokenizer:  tokenizer,
		verifier:   verifier,
		eventPub:   eventPub,
		logger:     logger,
		appTag:     core.DefaultAppTag,
		nonceTTL:   DefaultNonceTTL,
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL returns the lifetime of newly issued sessions
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// IssueNonce creates a fresh challenge for address, replacing any pending one
func (s *AuthService) IssueNonce(ctx context.Context, address string) (core.Challenge, error) {
	if !tron.ValidAddress(address) {
		return core.Challenge{}, core.ErrInvalidAddress
	}

	raw := make([]byte, nonceBytes)
	if _, err := rand.Read(raw); err != nil {
		return core.Challenge{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(raw)

	now := s.now()
	rec := core.NonceRecord{
		Address:   address,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.nonceTTL),
	}
	if err := s.store.PutNonce(ctx, rec); err != nil {
		return core.Challenge{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	return core.Challenge{
		Nonce:   nonce,
		Message: core.ChallengeMessage(s.appTag, address, nonce),
	}, nil
}

// VerifyAndIssueSession checks a signed challenge and returns a new session token.
// The nonce is consumed on success, so replaying the same request fails with
// core.ErrNonceMissing.
func (s *AuthService) VerifyAndIssueSession(ctx context.Context, address, signature, nonce string) (core.IssuedSession, error) {
	if !tron.ValidAddress(address) {
		return core.IssuedSession{}, core.ErrInvalidAddress
	}

	rec, err := s.store.GetNonce(ctx, address)
	if err != nil {
		if errors.Is(err, core.ErrNonceMissing) {
			return core.IssuedSession{}, core.ErrNonceMissing
		}
		return core.IssuedSession{}, fmt.Errorf("failed to load nonce: %w", err)
	}
	if rec.Nonce != nonce || rec.Expired(s.now()) {
		return core.IssuedSession{}, core.ErrNonceInvalidOrExpired
	}

	message := core.ChallengeMessage(s.appTag, address, nonce)
	if err := s.verifier.Verify(ctx, address, message, signature); err != nil {
		return core.IssuedSession{}, err
	}

	consumed, err := s.store.ConsumeNonce(ctx, address, nonce)
	if err != nil {
		return core.IssuedSession{}, fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !consumed {
		// another request used or replaced the nonce after our check
		return core.IssuedSession{}, core.ErrNonceMissing
	}

	token, err := s.tokenizer.NewSessionToken()
	if err != nil {
		return core.IssuedSession{}, fmt.Errorf("failed to create session token: %w", err)
	}

	now := s.now()
	session := core.Session{
		ID:        uuid.NewString(),
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.PutSession(ctx, token, session); err != nil {
		return core.IssuedSession{}, fmt.Errorf("failed to store session: %w", err)
	}

	if err := s.eventPub.PublishSessionIssued(ctx, address, session.ID); err != nil {
		// the session is already usable, losing the event is not fatal
		s.logger.Warn("failed to publish session event", zap.String("session_id", session.ID), zap.Error(err))
	}

	return core.IssuedSession{
		Token:     token,
		ExpiresIn: int64(s.sessionTTL / time.Second),
	}, nil
}

// ValidateSession returns the session bound to token if it has not expired
func (s *AuthService) ValidateSession(ctx context.Context, token string) (core.Session, error) {
	if token == "" {
		return core.Session{}, core.ErrUnauthorized
	}
	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.Session{}, core.ErrUnauthorized
		}
		return core.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if session.Expired(s.now()) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("failed to drop expired session", zap.String("session_id", session.ID), zap.Error(err))
		}
		return core.Session{}, core.ErrUnauthorized
	}
	return session, nil
}
