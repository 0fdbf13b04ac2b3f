package verifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/layer-3/tollgate/ports"
)

const (
	SchemeTronV2 = "tron-v2"
	SchemeTronV1 = "tron-v1"
	SchemeEIP191 = "eip191"
)

// DefaultSchemes mirrors what TronLink produces, current format first.
var DefaultSchemes = []string{SchemeTronV2, SchemeTronV1}

// digestScheme recovers the signer from a message digest and compares it with
// the claimed address.
type digestScheme struct {
	name   string
	digest func(message string) []byte
}

func (s digestScheme) Name() string {
	return s.name
}

func (s digestScheme) Verify(ctx context.Context, address, message, signature string) (core.Verdict, error) {
	claimed, err := tron.ParseAddress(address)
	if err != nil {
		return core.Inconclusive, fmt.Errorf("%s: %w", s.name, err)
	}
	recovered, err := tron.Recover(s.digest(message), signature)
	if err != nil {
		return core.Inconclusive, fmt.Errorf("%s: %w", s.name, err)
	}
	if recovered != claimed {
		return core.Rejected, nil
	}
	return core.Confirmed, nil
}

// NewTronV2 verifies signMessageV2 signatures.
func NewTronV2() ports.SignatureScheme {
	return digestScheme{
		name:   SchemeTronV2,
		digest: func(m string) []byte { return tron.HashMessage([]byte(m)) },
	}
}

// NewTronV1 verifies signatures of the legacy fixed-header format.
func NewTronV1() ports.SignatureScheme {
	return digestScheme{
		name:   SchemeTronV1,
		digest: tron.HashLegacyMessage,
	}
}

// NewEIP191 verifies personal_sign signatures made by Ethereum wallets
// holding the same key.
func NewEIP191() ports.SignatureScheme {
	return digestScheme{
		name:   SchemeEIP191,
		digest: func(m string) []byte { return accounts.TextHash([]byte(m)) },
	}
}

// ByName builds schemes in the given order. Unknown names are an error.
func ByName(names []string) ([]ports.SignatureScheme, error) {
	out := make([]ports.SignatureScheme, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case SchemeTronV2:
			out = append(out, NewTronV2())
		case SchemeTronV1:
			out = append(out, NewTronV1())
		case SchemeEIP191:
			out = append(out, NewEIP191())
		case "":
		default:
			return nil, fmt.Errorf("unknown signature scheme %q", n)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no signature scheme configured")
	}
	return out, nil
}
