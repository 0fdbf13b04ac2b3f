package tokenizer

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/layer-3/tollgate/ports"
)

// entropyBytes is the amount of randomness fed into every token
const entropyBytes = 16

var ErrEmptySecret = errors.New("session secret must not be empty")

// HMACTokenizer implements the Tokenizer interface with HMAC-SHA256 over
// fresh random bytes. Tokens carry no data, they are only lookup keys.
type HMACTokenizer struct {
	secret []byte
}

// NewHMACTokenizer creates a new HMAC tokenizer
func NewHMACTokenizer(secret string) (ports.Tokenizer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &HMACTokenizer{secret: []byte(secret)}, nil
}

// NewSessionToken returns a 64 character hex token
func (t *HMACTokenizer) NewSessionToken() (string, error) {
	seed := make([]byte, entropyBytes)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}
	mac := hmac.New(sha256.New, t.secret)
	mac.Write(seed)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
