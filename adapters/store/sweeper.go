package store

import (
	"context"
	"time"

	"github.com/layer-3/tollgate/ports"
	"go.uber.org/zap"
)

// DefaultSweepInterval is how often expired credentials are dropped
const DefaultSweepInterval = time.Minute

// RunSweeper calls Sweep on every tick until ctx is cancelled
func RunSweeper(ctx context.Context, s ports.CredentialStore, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := s.Sweep(ctx, now)
			if err != nil {
				logger.Warn("credential sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("swept expired credentials", zap.Int("removed", removed))
			}
		}
	}
}
