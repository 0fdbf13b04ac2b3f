package core

import (
	"io"
	"math/big"
	"net/http"
)

// Track is the on-chain sale record of a token id
type Track struct {
	ID         *big.Int
	Supply     *big.Int
	Price      *big.Int // in SUN
	Artist     string   // TRON base58 address
	RoyaltyBps uint64
}

// Verdict is the outcome of a single signature scheme
type Verdict int

const (
	// Inconclusive means the scheme could not decide, e.g. a malformed signature.
	Inconclusive Verdict = iota
	Rejected
	Confirmed
)

func (v Verdict) String() string {
	switch v {
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	default:
		return "inconclusive"
	}
}

// Upstream is an opened media response ready to be relayed to the caller.
// When Passthrough is set the origin answered with a non-success status and
// Status/Body must be relayed verbatim without the allow-listed headers.
type Upstream struct {
	Status      int
	Header      http.Header
	Body        io.ReadCloser
	Passthrough bool
}
