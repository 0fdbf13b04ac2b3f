package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"github.com/redis/go-redis/v9"
)

// consumeNonceScript deletes the nonce key only while it still holds the
// expected nonce, so two concurrent logins cannot both consume it.
var consumeNonceScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return 0
end
local rec = cjson.decode(raw)
if rec['nonce'] ~= ARGV[1] then
	return 0
end
return redis.call('DEL', KEYS[1])
`)

// RedisStore is a Redis implementation of the CredentialStore interface.
// Records live only as long as their key TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "tollgate:",
	}
}

var _ ports.CredentialStore = (*RedisStore)(nil)

func (s *RedisStore) nonceKey(address string) string {
	return s.prefix + "nonce:" + address
}

func (s *RedisStore) sessionKey(token string) string {
	return s.prefix + "session:" + token
}

// PutNonce stores the nonce with the record's remaining lifetime as TTL
func (s *RedisStore) PutNonce(ctx context.Context, rec core.NonceRecord) error {
	return s.setJSON(ctx, s.nonceKey(rec.Address), rec, time.Until(rec.ExpiresAt))
}

// GetNonce returns the pending nonce for an address
func (s *RedisStore) GetNonce(ctx context.Context, address string) (core.NonceRecord, error) {
	var rec core.NonceRecord
	if err := s.getJSON(ctx, s.nonceKey(address), &rec); err != nil {
		if errors.Is(err, redis.Nil) {
			return core.NonceRecord{}, core.ErrNonceMissing
		}
		return core.NonceRecord{}, err
	}
	return rec, nil
}

// ConsumeNonce atomically deletes the nonce if it matches
func (s *RedisStore) ConsumeNonce(ctx context.Context, address, nonce string) (bool, error) {
	n, err := consumeNonceScript.Run(ctx, s.client, []string{s.nonceKey(address)}, nonce).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return n > 0, nil
}

// PutSession stores the session with its remaining lifetime as TTL
func (s *RedisStore) PutSession(ctx context.Context, token string, session core.Session) error {
	return s.setJSON(ctx, s.sessionKey(token), session, time.Until(session.ExpiresAt))
}

// GetSession looks a session up by token
func (s *RedisStore) GetSession(ctx context.Context, token string) (core.Session, error) {
	var session core.Session
	if err := s.getJSON(ctx, s.sessionKey(token), &session); err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Session{}, core.ErrSessionNotFound
		}
		return core.Session{}, err
	}
	return session, nil
}

// DeleteSession removes a session
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sweep is a no-op, Redis expires keys on its own
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if ttl <= 0 {
		// already expired, make sure nothing stale survives
		return s.client.Del(ctx, key).Err()
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return err
		}
		return fmt.Errorf("failed to load record: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}
