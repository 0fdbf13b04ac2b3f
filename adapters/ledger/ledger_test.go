package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContract answers calls by method name
type fakeContract struct {
	uri      string
	balances map[common.Address]*big.Int
	artist   common.Address
}

func (f *fakeContract) answer(t *testing.T, method string, input []byte) []byte {
	m := musicEditions.Methods[method]
	args, err := m.Inputs.Unpack(input)
	require.NoError(t, err)

	var out []byte
	switch method {
	case "uri":
		out, err = m.Outputs.Pack(f.uri)
	case "balanceOf":
		bal := f.balances[args[0].(common.Address)]
		if bal == nil {
			bal = big.NewInt(0)
		}
		out, err = m.Outputs.Pack(bal)
	case "tracks":
		out, err = m.Outputs.Pack(big.NewInt(100), big.NewInt(15_000_000), f.artist, big.NewInt(500))
	}
	require.NoError(t, err)
	return out
}

func (f *fakeContract) methodBySelector(sel []byte) string {
	for name, m := range musicEditions.Methods {
		if string(m.ID) == string(sel) {
			return name
		}
	}
	return ""
}

func newAccount(t *testing.T) tron.Address {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return tron.FromPublicKey(&key.PublicKey)
}

func TestTronGridLedger(t *testing.T) {
	contract := newAccount(t)
	holder := newAccount(t)
	artist := newAccount(t)

	fake := &fakeContract{
		uri:      "ipfs://CID/{id}.json",
		balances: map[common.Address]*big.Int{holder.EVM(): big.NewInt(2)},
		artist:   artist.EVM(),
	}

	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, triggerConstantPath, r.URL.Path)
		gotKey = r.Header.Get(apiKeyHeader)

		var req triggerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, contract.String(), req.ContractAddress)
		assert.True(t, req.Visible)

		method := ""
		for name, m := range musicEditions.Methods {
			if m.Sig == req.FunctionSelector {
				method = name
			}
		}
		require.NotEmpty(t, method, "unknown selector %s", req.FunctionSelector)

		input, err := hex.DecodeString(req.Parameter)
		require.NoError(t, err)

		json.NewEncoder(w).Encode(map[string]any{
			"result":          map[string]any{"result": true},
			"constant_result": []string{hex.EncodeToString(fake.answer(t, method, input))},
			"transaction":     map[string]any{"ret": []map[string]any{{}}},
		})
	}))
	defer srv.Close()

	l, err := NewTronGridLedger(srv.URL+"/", contract.String(), time.Second, WithAPIKey("k"))
	require.NoError(t, err)
	ctx := context.Background()

	uri, err := l.URI(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "ipfs://CID/{id}.json", uri)
	assert.Equal(t, "k", gotKey)

	bal, err := l.BalanceOf(ctx, holder.String(), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), bal.Int64())

	bal, err = l.BalanceOf(ctx, newAccount(t).String(), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.Int64())

	track, err := l.Track(ctx, big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), track.ID.Int64())
	assert.Equal(t, int64(100), track.Supply.Int64())
	assert.Equal(t, int64(15_000_000), track.Price.Int64())
	assert.Equal(t, artist.String(), track.Artist)
	assert.Equal(t, uint64(500), track.RoyaltyBps)
}

func TestTronGridLedgerFailures(t *testing.T) {
	contract := newAccount(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"rejected", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":{"code":"CONTRACT_VALIDATE_ERROR","message":"` + hex.EncodeToString([]byte("no contract")) + `"}}`))
		}},
		{"reverted", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":{"result":true},"constant_result":["08c379a0"],"transaction":{"ret":[{"contractRet":"REVERT"}]}}`))
		}},
		{"empty result", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":{"result":true},"constant_result":[]}`))
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"result":`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			l, err := NewTronGridLedger(srv.URL, contract.String(), time.Second)
			require.NoError(t, err)
			_, err = l.BalanceOf(ctx, contract.String(), big.NewInt(1))
			assert.Error(t, err)
		})
	}
}

func TestNewTronGridLedgerBadContract(t *testing.T) {
	_, err := NewTronGridLedger("http://localhost", "0xabc", time.Second)
	assert.ErrorIs(t, err, tron.ErrAddressFormat)
}

// fakeCaller implements bind.ContractCaller on top of fakeContract
type fakeCaller struct {
	t    *testing.T
	fake *fakeContract
	to   common.Address
}

func (c *fakeCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (c *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.to = *call.To
	method := c.fake.methodBySelector(call.Data[:4])
	require.NotEmpty(c.t, method)
	return c.fake.answer(c.t, method, call.Data[4:]), nil
}

func TestJSONRPCLedger(t *testing.T) {
	contract := newAccount(t)
	holder := newAccount(t)
	fake := &fakeContract{
		uri:      "ipfs://CID/7.json",
		balances: map[common.Address]*big.Int{holder.EVM(): big.NewInt(1)},
		artist:   holder.EVM(),
	}
	caller := &fakeCaller{t: t, fake: fake}

	l := NewJSONRPCLedger(caller, contract, time.Second)
	ctx := context.Background()

	uri, err := l.URI(ctx, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, "ipfs://CID/7.json", uri)
	assert.Equal(t, contract.EVM(), caller.to)

	bal, err := l.BalanceOf(ctx, holder.String(), big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(1), bal.Int64())

	track, err := l.Track(ctx, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, holder.String(), track.Artist)

	_, err = l.BalanceOf(ctx, "not-an-address", big.NewInt(7))
	assert.Error(t, err)
}
