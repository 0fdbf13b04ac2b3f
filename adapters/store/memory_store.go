package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

// MemoryStore is an in-memory implementation of the CredentialStore interface.
// The lock is only held for map access, never across I/O.
type MemoryStore struct {
	nonces   map[string]core.NonceRecord
	sessions map[string]core.Session
	mu       sync.Mutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nonces:   make(map[string]core.NonceRecord),
		sessions: make(map[string]core.Session),
	}
}

var _ ports.CredentialStore = (*MemoryStore)(nil)

// PutNonce stores the nonce, replacing any pending one for the address
func (s *MemoryStore) PutNonce(ctx context.Context, rec core.NonceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonces[rec.Address] = rec
	return nil
}

// GetNonce returns the pending nonce for an address
func (s *MemoryStore) GetNonce(ctx context.Context, address string) (core.NonceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nonces[address]
	if !ok {
		return core.NonceRecord{}, core.ErrNonceMissing
	}
	return rec, nil
}

// ConsumeNonce deletes the pending nonce if it is still the expected one
func (s *MemoryStore) ConsumeNonce(ctx context.Context, address, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nonces[address]
	if !ok || rec.Nonce != nonce {
		return false, nil
	}
	delete(s.nonces, address)
	return true, nil
}

// PutSession stores a session under its token
func (s *MemoryStore) PutSession(ctx context.Context, token string, session core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = session
	return nil
}

// GetSession looks a session up by token
func (s *MemoryStore) GetSession(ctx context.Context, token string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return core.Session{}, core.ErrSessionNotFound
	}
	return session, nil
}

// DeleteSession removes a session, missing tokens are ignored
func (s *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// Sweep drops every nonce and session that expired at now
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for addr, rec := range s.nonces {
		if rec.Expired(now) {
			delete(s.nonces, addr)
			removed++
		}
	}
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of pending nonces and live sessions
func (s *MemoryStore) Len() (nonces int, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.nonces), len(s.sessions)
}
