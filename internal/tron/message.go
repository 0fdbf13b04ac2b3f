package tron

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// messagePrefix is prepended by signMessageV2, followed by the decimal message length.
	messagePrefix = "\x19TRON Signed Message:\n"
	// legacyHeader is the fixed header of the TronWeb sign()/verifyMessage pair.
	legacyHeader = "\x19TRON Signed Message:\n32"
)

var ErrSignatureFormat = errors.New("signature must be 65 bytes of hex")

// HashMessage returns the digest TronLink signs for signMessageV2.
func HashMessage(message []byte) []byte {
	return crypto.Keccak256(
		[]byte(messagePrefix),
		[]byte(strconv.Itoa(len(message))),
		message,
	)
}

// HashLegacyMessage returns the digest of the legacy signing scheme. The
// legacy scheme signs raw bytes, so a hex message is decoded first and any
// other text is taken as its UTF-8 bytes.
func HashLegacyMessage(message string) []byte {
	payload := []byte(message)
	trimmed := strings.TrimPrefix(message, "0x")
	if len(trimmed) > 0 && len(trimmed)%2 == 0 {
		if decoded, err := hexutil.Decode("0x" + trimmed); err == nil {
			payload = decoded
		}
	}
	return crypto.Keccak256([]byte(legacyHeader), payload)
}

// DecodeSignature parses a 0x-optional hex signature and normalises the
// recovery byte to 0/1 as go-ethereum expects.
func DecodeSignature(sig string) ([]byte, error) {
	raw := common.FromHex(strings.TrimSpace(sig))
	if len(raw) != crypto.SignatureLength {
		return nil, ErrSignatureFormat
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	switch v := out[crypto.RecoveryIDOffset]; {
	case v == 27 || v == 28:
		out[crypto.RecoveryIDOffset] = v - 27
	case v > 1:
		return nil, fmt.Errorf("recovery id %d: %w", v, ErrSignatureFormat)
	}
	return out, nil
}

// Recover returns the TRON address that produced sig over digest.
func Recover(digest []byte, sig string) (Address, error) {
	raw, err := DecodeSignature(sig)
	if err != nil {
		return Address{}, err
	}
	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return FromPublicKey(pub), nil
}

// SignMessage produces a signMessageV2 compatible signature with v in {27,28}.
func SignMessage(message string, key *ecdsa.PrivateKey) (string, error) {
	return sign(HashMessage([]byte(message)), key)
}

// SignLegacyMessage produces a signature for the legacy scheme.
func SignLegacyMessage(message string, key *ecdsa.PrivateKey) (string, error) {
	return sign(HashLegacyMessage(message), key)
}

func sign(digest []byte, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
