package core

import (
	"fmt"
	"time"
)

// DefaultAppTag is the first line of every challenge message.
const DefaultAppTag = "Strinz login"

// NonceRecord is a pending challenge for an address
type NonceRecord struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is no longer usable at now.
func (r NonceRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Challenge is what the client receives and signs
type Challenge struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// Session represents an authenticated address, keyed by its bearer token
type Session struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IssuedSession is returned to the client after a successful login
type IssuedSession struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"` // seconds
}

// ChallengeMessage builds the text a wallet signs. Both issuance and
// verification must go through this function.
func ChallengeMessage(appTag, address, nonce string) string {
	return fmt.Sprintf("%s\nAddr:%s\nNonce:%s", appTag, address, nonce)
}
