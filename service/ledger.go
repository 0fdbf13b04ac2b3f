package service

import (
	"context"
	"fmt"
	"math/big"
	"regexp"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"github.com/shopspring/decimal"
)

// 1 TRX = 10^6 SUN
const sunDecimals = 6

var (
	assetIDPattern = regexp.MustCompile(`^[0-9]{1,78}$`)
	maxUint256     = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// ParseAssetID parses a base-10 uint256 token id
func ParseAssetID(raw string) (*big.Int, error) {
	if !assetIDPattern.MatchString(raw) {
		return nil, core.ErrInvalidAssetID
	}
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Cmp(maxUint256) > 0 {
		return nil, core.ErrInvalidAssetID
	}
	return id, nil
}

// OwnershipOracle answers how many units of an asset an address holds.
// It never caches: every call is a live ledger read.
type OwnershipOracle struct {
	ledger ports.Ledger
}

// NewOwnershipOracle creates an oracle over ledger
func NewOwnershipOracle(ledger ports.Ledger) *OwnershipOracle {
	return &OwnershipOracle{ledger: ledger}
}

// BalanceOf returns the balance or an error wrapping core.ErrLedgerUnavailable
func (o *OwnershipOracle) BalanceOf(ctx context.Context, address string, id *big.Int) (*big.Int, error) {
	bal, err := o.ledger.BalanceOf(ctx, address, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}
	if bal == nil {
		return nil, fmt.Errorf("%w: empty balance", core.ErrLedgerUnavailable)
	}
	return bal, nil
}

// TrackInfo is the public sale data of a token id
type TrackInfo struct {
	ID         string `json:"id"`
	Supply     string `json:"supply"`
	Price      string `json:"price"`
	PriceTRX   string `json:"priceTRX"`
	Artist     string `json:"artist"`
	RoyaltyBps uint64 `json:"royaltyBps"`
}

// Catalog reads track sale data from the ledger
type Catalog struct {
	ledger ports.Ledger
}

// NewCatalog creates a catalog over ledger
func NewCatalog(ledger ports.Ledger) *Catalog {
	return &Catalog{ledger: ledger}
}

// Track returns sale data for a raw id string
func (c *Catalog) Track(ctx context.Context, rawID string) (*TrackInfo, error) {
	id, err := ParseAssetID(rawID)
	if err != nil {
		return nil, err
	}
	t, err := c.ledger.Track(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrLedgerUnavailable, err)
	}
	return &TrackInfo{
		ID:         t.ID.String(),
		Supply:     t.Supply.String(),
		Price:      t.Price.String(),
		PriceTRX:   decimal.NewFromBigInt(t.Price, -sunDecimals).String(),
		Artist:     t.Artist,
		RoyaltyBps: t.RoyaltyBps,
	}, nil
}
