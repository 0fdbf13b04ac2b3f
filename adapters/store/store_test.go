package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const addr = "TJRabPrwbZy45sbavfcjinPJC18kjpRTv8"

// stores returns every implementation that can run in this environment.
func stores(t *testing.T) map[string]ports.CredentialStore {
	out := map[string]ports.CredentialStore{"memory": NewMemoryStore()}

	if url := os.Getenv("TOLLGATE_TEST_REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		require.NoError(t, err)
		client := redis.NewClient(opts)
		t.Cleanup(func() { client.Close() })
		rs := NewRedisStore(client)
		rs.prefix = fmt.Sprintf("tollgate-test:%d:", time.Now().UnixNano())
		out["redis"] = rs
	}
	return out
}

func TestNonceLifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()

			_, err := s.GetNonce(ctx, addr)
			assert.ErrorIs(t, err, core.ErrNonceMissing)

			first := core.NonceRecord{Address: addr, Nonce: "aa", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}
			require.NoError(t, s.PutNonce(ctx, first))

			second := first
			second.Nonce = "bb"
			require.NoError(t, s.PutNonce(ctx, second))

			got, err := s.GetNonce(ctx, addr)
			require.NoError(t, err)
			assert.Equal(t, "bb", got.Nonce)

			ok, err := s.ConsumeNonce(ctx, addr, "aa")
			require.NoError(t, err)
			assert.False(t, ok, "overwritten nonce must not be consumable")

			ok, err = s.ConsumeNonce(ctx, addr, "bb")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.ConsumeNonce(ctx, addr, "bb")
			require.NoError(t, err)
			assert.False(t, ok, "nonce is single use")

			_, err = s.GetNonce(ctx, addr)
			assert.ErrorIs(t, err, core.ErrNonceMissing)
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()

			_, err := s.GetSession(ctx, "nope")
			assert.ErrorIs(t, err, core.ErrSessionNotFound)

			session := core.Session{ID: "id", Address: addr, IssuedAt: now, ExpiresAt: now.Add(time.Minute)}
			require.NoError(t, s.PutSession(ctx, "tok", session))

			got, err := s.GetSession(ctx, "tok")
			require.NoError(t, err)
			assert.Equal(t, addr, got.Address)
			assert.True(t, got.ExpiresAt.Equal(session.ExpiresAt))

			require.NoError(t, s.DeleteSession(ctx, "tok"))
			_, err = s.GetSession(ctx, "tok")
			assert.ErrorIs(t, err, core.ErrSessionNotFound)
		})
	}
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.PutNonce(ctx, core.NonceRecord{Address: "old", Nonce: "1", ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, s.PutNonce(ctx, core.NonceRecord{Address: "new", Nonce: "2", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, s.PutSession(ctx, "old", core.Session{Address: "a", ExpiresAt: now}))
	require.NoError(t, s.PutSession(ctx, "new", core.Session{Address: "b", ExpiresAt: now.Add(time.Minute)}))

	removed, err := s.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	nonces, sessions := s.Len()
	assert.Equal(t, 1, nonces)
	assert.Equal(t, 1, sessions)

	_, err = s.GetNonce(ctx, "old")
	assert.ErrorIs(t, err, core.ErrNonceMissing)
	_, err = s.GetSession(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryConsumeNonceConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.PutNonce(ctx, core.NonceRecord{Address: addr, Nonce: "n", ExpiresAt: time.Now().Add(time.Minute)}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.ConsumeNonce(ctx, addr, "n"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRunSweeper(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutSession(context.Background(), "t", core.Session{ExpiresAt: time.Now().Add(-time.Second)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, s, 5*time.Millisecond, zap.NewNop())
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, sessions := s.Len()
		return sessions == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
