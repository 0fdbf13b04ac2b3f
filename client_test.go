package tollgate_test

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/tollgate"
	"github.com/layer-3/tollgate/adapters/events"
	"github.com/layer-3/tollgate/adapters/store"
	"github.com/layer-3/tollgate/adapters/tokenizer"
	"github.com/layer-3/tollgate/adapters/verifier"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/ipfs"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/layer-3/tollgate/service"
	transport "github.com/layer-3/tollgate/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type holderLedger struct {
	holder string
	uri    string
}

func (l holderLedger) URI(ctx context.Context, id *big.Int) (string, error) { return l.uri, nil }

func (l holderLedger) BalanceOf(ctx context.Context, address string, id *big.Int) (*big.Int, error) {
	if address == l.holder {
		return big.NewInt(1), nil
	}
	return big.NewInt(0), nil
}

func (l holderLedger) Track(ctx context.Context, id *big.Int) (*core.Track, error) {
	return &core.Track{ID: id, Supply: big.NewInt(10), Price: big.NewInt(1_250_000), Artist: l.holder, RoyaltyBps: 100}, nil
}

func startGateway(t *testing.T, ledger holderLedger, gatewayBase string) *tollgate.Client {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	tk, err := tokenizer.NewHMACTokenizer("client-test")
	require.NoError(t, err)
	schemes, err := verifier.ByName(verifier.DefaultSchemes)
	require.NoError(t, err)

	auth := service.NewAuthService(store.NewMemoryStore(), tk, service.NewSignatureVerifier(logger, schemes...),
		events.NopPublisher{}, logger)
	locator := service.NewAssetLocator(ledger, ipfs.NewGateway(gatewayBase), http.DefaultClient, logger)
	stream := service.NewStreamService(auth, service.NewOwnershipOracle(ledger), locator, http.DefaultClient,
		events.NopPublisher{}, logger)

	router := transport.SetupRouter(transport.RouterConfig{
		AuthService:   auth,
		StreamService: stream,
		Catalog:       service.NewCatalog(ledger),
		Logger:        logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return tollgate.NewClient(srv.URL + "/")
}

func TestClientLoginAndStream(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "song.mp3", time.Time{}, strings.NewReader("abcdefghij"))
	}))
	defer origin.Close()
	metadata := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"animation_url":"` + origin.URL + `/song.mp3"}`))
	}))
	defer metadata.Close()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := tron.FromPublicKey(&key.PublicKey).String()

	client := startGateway(t, holderLedger{holder: address, uri: metadata.URL + "/{id}.json"}, "")
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	issued, err := client.Login(ctx, address, func(message string) (string, error) {
		return tron.SignMessage(message, key)
	})
	require.NoError(t, err)
	assert.Len(t, issued.Token, 64)
	assert.EqualValues(t, 1800, issued.ExpiresIn)

	resp, err := client.Stream(ctx, issued.Token, "1", "bytes=2-5")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 2-5/10", resp.Header.Get("Content-Range"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(body))

	info, err := client.Track(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1.25", info.PriceTRX)
}

func TestClientErrors(t *testing.T) {
	client := startGateway(t, holderLedger{holder: "nobody"}, "")
	ctx := context.Background()

	_, err := client.Nonce(ctx, "not-an-address")
	var apiErr *tollgate.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Bad address", apiErr.Message)

	_, err = client.Stream(ctx, "bogus", "1", "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := tron.FromPublicKey(&key.PublicKey).String()
	_, err = client.Login(ctx, address, func(string) (string, error) { return "00", nil })
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Signature invalid", apiErr.Message)
}
