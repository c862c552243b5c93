package cleanup

import (
	"context"
	"time"

	"github.com/joaopedro08-dev/authgo/internal/repository"
)

const defaultInterval = 5 * time.Minute

type logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type bucketEvictor interface {
	EvictIdle(now time.Time) int
}

// Cleaner purges expired blacklist and refresh rows and evicts idle rate
// buckets on a fixed cadence
// Replaces what the stores would otherwise accumulate forever: rows that can
// no longer affect any decision
type Cleaner struct {
	interval time.Duration
	storage  repository.Storage
	limiter  bucketEvictor
	logger   logger
}

func New(interval time.Duration, storage repository.Storage, limiter bucketEvictor, l logger) *Cleaner {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Cleaner{
		interval: interval,
		storage:  storage,
		limiter:  limiter,
		logger:   l,
	}
}

// Run blocks until ctx is cancelled, purging every interval
// Every pass is idempotent and safe to overlap with live traffic:
// a purge racing a revoke of an already expired entry is benign
func (c *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.purge(ctx)
		}
	}
}

// One purge pass, errors are logged and never stop the cadence
func (c *Cleaner) purge(ctx context.Context) {
	now := time.Now()

	revoked, err := c.storage.Blacklist().PurgeExpired(ctx, now)
	if err != nil {
		c.logger.Error("blacklist purge failed", "error", err.Error())
	}

	refresh, err := c.storage.Refresh().PurgeExpired(ctx, now)
	if err != nil {
		c.logger.Error("refresh token purge failed", "error", err.Error())
	}

	buckets := 0
	if c.limiter != nil {
		buckets = c.limiter.EvictIdle(now)
	}

	c.logger.Info("cleanup pass done",
		"blacklist_purged", revoked,
		"refresh_purged", refresh,
		"rate_buckets_evicted", buckets,
	)
}
