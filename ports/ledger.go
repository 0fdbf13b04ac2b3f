package ports

import (
	"context"
	"math/big"

	"github.com/layer-3/tollgate/core"
)

// Ledger is a read-only view of the music token contract
type Ledger interface {
	// URI returns the metadata pointer of a token id
	URI(ctx context.Context, id *big.Int) (string, error)
	// BalanceOf returns how many units of id the TRON address holds
	BalanceOf(ctx context.Context, address string, id *big.Int) (*big.Int, error)
	// Track returns the sale record of id
	Track(ctx context.Context, id *big.Int) (*core.Track, error)
}
