package verifier

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/internal/tron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemes(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := tron.FromPublicKey(&key.PublicKey).String()

	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)
	strangerAddr := tron.FromPublicKey(&stranger.PublicKey).String()

	msg := core.ChallengeMessage(core.DefaultAppTag, address, "abc123")

	v2sig, err := tron.SignMessage(msg, key)
	require.NoError(t, err)
	v1sig, err := tron.SignLegacyMessage(msg, key)
	require.NoError(t, err)
	raw, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	ethsig := hexutil.Encode(raw)

	tests := []struct {
		name    string
		scheme  string
		address string
		sig     string
		want    core.Verdict
	}{
		{"v2 own", SchemeTronV2, address, v2sig, core.Confirmed},
		{"v2 other address", SchemeTronV2, strangerAddr, v2sig, core.Rejected},
		{"v2 given v1 sig", SchemeTronV2, address, v1sig, core.Rejected},
		{"v1 own", SchemeTronV1, address, v1sig, core.Confirmed},
		{"v1 given v2 sig", SchemeTronV1, address, v2sig, core.Rejected},
		{"eip191 own, v in 0/1", SchemeEIP191, address, ethsig, core.Confirmed},
		{"garbage signature", SchemeTronV2, address, "0xdeadbeef", core.Inconclusive},
		{"bad claimed address", SchemeTronV1, "nope", v1sig, core.Inconclusive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schemes, err := ByName([]string{tt.scheme})
			require.NoError(t, err)
			got, err := schemes[0].Verify(ctx, tt.address, msg, tt.sig)
			assert.Equal(t, tt.want, got)
			if tt.want == core.Inconclusive {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestByName(t *testing.T) {
	schemes, err := ByName([]string{" Tron-V2 ", "tron-v1", "eip191"})
	require.NoError(t, err)
	require.Len(t, schemes, 3)
	assert.Equal(t, SchemeTronV2, schemes[0].Name())
	assert.Equal(t, SchemeTronV1, schemes[1].Name())
	assert.Equal(t, SchemeEIP191, schemes[2].Name())

	_, err = ByName([]string{"ed25519"})
	assert.Error(t, err)

	_, err = ByName(nil)
	assert.Error(t, err)
}
