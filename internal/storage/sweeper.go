// Package storage holds the expiry sweeper that enforces artifact
// retention across blob store implementations.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xvc323/omnidocs/internal/crawler"
)

// DefaultSweepInterval is how often the sweeper scans for expired objects.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically deletes blobs whose expiry metadata has passed.
type Sweeper struct {
	store    crawler.BlobStore
	clock    crawler.Clock
	interval time.Duration
	log      *zap.Logger
}

// NewSweeper builds a sweeper over the given store.
func NewSweeper(store crawler.BlobStore, clock crawler.Clock, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{store: store, clock: clock, interval: interval, log: log}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.SweepOnce(ctx)
			if err != nil {
				s.log.Warn("artifact sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				s.log.Info("expired artifacts deleted", zap.Int("count", deleted))
			}
		}
	}
}

// SweepOnce deletes every expired object and reports how many were removed.
// Objects without expiry metadata are kept.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	objects, err := s.store.ListObjects(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list objects: %w", err)
	}
	now := s.clock.Now()
	deleted := 0
	for _, obj := range objects {
		if obj.ExpiresAt.IsZero() || obj.ExpiresAt.After(now) {
			continue
		}
		if err := s.store.DeleteObject(ctx, obj.Key); err != nil {
			s.log.Warn("delete expired object failed",
				zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
