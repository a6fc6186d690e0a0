package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/cache"
)

// CacheSweeper periodically removes expired rows from the persisted
// cache tier so the table does not accumulate dead entries between
// reads.
type CacheSweeper struct {
	cache    *cache.Manager
	interval time.Duration
	logger   *zap.Logger
}

// NewCacheSweeper builds a sweeper. Intervals below one minute are
// raised to one minute.
func NewCacheSweeper(cacheManager *cache.Manager, interval time.Duration, logger *zap.Logger) *CacheSweeper {
	if interval < time.Minute {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheSweeper{cache: cacheManager, interval: interval, logger: logger}
}

// Run sweeps until the context is cancelled.
func (s *CacheSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.cache.ClearExpired(ctx)
			if err != nil {
				s.logger.Warn("cache sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("cache sweep removed expired entries", zap.Int64("removed", removed))
			}
		}
	}
}
