package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/tron"
)

// MusicEditionsABI covers the read-only part of the Music1155 contract.
const MusicEditionsABI = `[
	{"type":"function","name":"uri","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"price","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tracks","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[
		{"name":"supply","type":"uint256"},
		{"name":"price","type":"uint256"},
		{"name":"artist","type":"address"},
		{"name":"royaltyBps","type":"uint96"}
	]}
]`

var musicEditions = mustParseABI(MusicEditionsABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

func decodeString(out []interface{}) (string, error) {
	if len(out) != 1 {
		return "", fmt.Errorf("expected 1 return value, got %d", len(out))
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected return type %T", out[0])
	}
	return s, nil
}

func decodeUint(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 return value, got %d", len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected return type %T", out[0])
	}
	return n, nil
}

func decodeTrack(id *big.Int, out []interface{}) (*core.Track, error) {
	if len(out) != 4 {
		return nil, fmt.Errorf("expected 4 return values, got %d", len(out))
	}
	supply, ok1 := out[0].(*big.Int)
	price, ok2 := out[1].(*big.Int)
	artist, ok3 := out[2].(common.Address)
	royalty, ok4 := out[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("unexpected tracks() return types %T %T %T %T", out[0], out[1], out[2], out[3])
	}
	return &core.Track{
		ID:         new(big.Int).Set(id),
		Supply:     supply,
		Price:      price,
		Artist:     tron.FromEVM(artist).String(),
		RoyaltyBps: royalty.Uint64(),
	}, nil
}
