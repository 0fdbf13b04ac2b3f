package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/tollgate/adapters/events"
	"github.com/layer-3/tollgate/adapters/store"
	"github.com/layer-3/tollgate/adapters/tokenizer"
	"github.com/layer-3/tollgate/adapters/verifier"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/ipfs"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeLedger is an in-memory ports.Ledger
type fakeLedger struct {
	mu       sync.Mutex
	uris     map[string]string
	balances map[string]*big.Int // key: address + "/" + id
	err      error
	calls    int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		uris:     make(map[string]string),
		balances: make(map[string]*big.Int),
	}
}

func (f *fakeLedger) setBalance(address string, id int64, bal int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address+"/"+big.NewInt(id).String()] = big.NewInt(bal)
}

func (f *fakeLedger) setURI(id int64, uri string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uris[big.NewInt(id).String()] = uri
}

func (f *fakeLedger) URI(ctx context.Context, id *big.Int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	uri, ok := f.uris[id.String()]
	if !ok {
		return "", errors.New("execution reverted: unknown id")
	}
	return uri, nil
}

func (f *fakeLedger) BalanceOf(ctx context.Context, address string, id *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if bal, ok := f.balances[address+"/"+id.String()]; ok {
		return bal, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeLedger) Track(ctx context.Context, id *big.Int) (*core.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &core.Track{
		ID:         id,
		Supply:     big.NewInt(1000),
		Price:      big.NewInt(15_500_000),
		Artist:     "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		RoyaltyBps: 750,
	}, nil
}

// clock is a manually advanced time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: tron.FromPublicKey(&key.PublicKey).String()}
}

func (w wallet) sign(t *testing.T, message string) string {
	sig, err := tron.SignMessage(message, w.key)
	require.NoError(t, err)
	return sig
}

type fixture struct {
	store   *store.MemoryStore
	ledger  *fakeLedger
	clock   *clock
	auth    *AuthService
	locator *AssetLocator
	stream  *StreamService
}

func newFixture(t *testing.T, gatewayBase string) *fixture {
	logger := zap.NewNop()
	st := store.NewMemoryStore()
	ledger := newFakeLedger()
	clk := newClock()

	tk, err := tokenizer.NewHMACTokenizer("test-secret")
	require.NoError(t, err)
	schemes, err := verifier.ByName(verifier.DefaultSchemes)
	require.NoError(t, err)

	auth := NewAuthService(st, tk, NewSignatureVerifier(logger, schemes...), events.NopPublisher{}, logger,
		WithClock(clk.Now))
	locator := NewAssetLocator(ledger, ipfs.NewGateway(gatewayBase), http.DefaultClient, logger)
	stream := NewStreamService(auth, NewOwnershipOracle(ledger), locator, http.DefaultClient, events.NopPublisher{}, logger)

	return &fixture{store: st, ledger: ledger, clock: clk, auth: auth, locator: locator, stream: stream}
}

// login runs the full challenge flow and returns a session token
func (f *fixture) login(t *testing.T, w wallet) string {
	ctx := context.Background()
	ch, err := f.auth.IssueNonce(ctx, w.address)
	require.NoError(t, err)
	issued, err := f.auth.VerifyAndIssueSession(ctx, w.address, w.sign(t, ch.Message), ch.Nonce)
	require.NoError(t, err)
	return issued.Token
}
