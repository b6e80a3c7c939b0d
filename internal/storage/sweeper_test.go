package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xvc323/omnidocs/internal/crawler"
	"github.com/xvc323/omnidocs/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestSweepOnceDeletesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBlobStore()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	put := func(key string, expires time.Time) {
		_, err := store.PutObject(ctx, key, []byte("x"), crawler.PutOptions{ExpiresAt: expires})
		require.NoError(t, err)
	}
	put("expired/a", now.Add(-time.Minute))
	put("live/b", now.Add(time.Hour))
	put("forever/c", time.Time{})

	sweeper := NewSweeper(store, fixedClock{now: now}, time.Minute, zap.NewNop())
	deleted, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	_, _, err = store.GetObject(ctx, "expired/a")
	require.ErrorIs(t, err, crawler.ErrObjectNotFound)
	_, _, err = store.GetObject(ctx, "live/b")
	require.NoError(t, err)
	_, _, err = store.GetObject(ctx, "forever/c")
	require.NoError(t, err, "objects without expiry metadata are kept")
}

func TestSweepRunStopsOnCancel(t *testing.T) {
	store := memory.NewBlobStore()
	sweeper := NewSweeper(store, fixedClock{now: time.Now()}, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
