package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"verbs-tickets/internal/logger"
)

func TestLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), 5, time.Hour, logger.NewLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ctx, "1.2.3.4"), "request %d should pass", i+1)
	}
	assert.False(t, limiter.Allow(ctx, "1.2.3.4"), "6th request should be limited")
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), 1, time.Hour, logger.NewLogger())
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "1.2.3.4"))
	assert.False(t, limiter.Allow(ctx, "1.2.3.4"))
	assert.True(t, limiter.Allow(ctx, "5.6.7.8"))
}

func TestMemoryStoreWindowExpires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	count, err := store.Incr(ctx, "k", 10*time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	count, _ = store.Incr(ctx, "k", 10*time.Millisecond)
	assert.Equal(t, 2, count)

	time.Sleep(15 * time.Millisecond)

	count, _ = store.Incr(ctx, "k", 10*time.Millisecond)
	assert.Equal(t, 1, count, "window should reset after expiry")
}

func TestMemoryStoreSweepsExpiredKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := store.Incr(ctx, key, 10*time.Millisecond)
		assert.NoError(t, err)
	}

	time.Sleep(15 * time.Millisecond)

	// Force the next Incr to run a sweep instead of waiting out the interval.
	store.mu.Lock()
	store.nextSweep = time.Now()
	store.mu.Unlock()

	_, err := store.Incr(ctx, "d", time.Hour)
	assert.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.entries, 1, "expired windows for other keys should be reclaimed")
	assert.Contains(t, store.entries, "d")
}

type brokenStore struct{}

func (brokenStore) Incr(context.Context, string, time.Duration) (int, error) {
	return 0, errors.New("connection refused")
}

func TestLimiterFailsOpen(t *testing.T) {
	limiter := NewLimiter(brokenStore{}, 1, time.Hour, logger.NewLogger())
	assert.True(t, limiter.Allow(context.Background(), "1.2.3.4"))
	assert.True(t, limiter.Allow(context.Background(), "1.2.3.4"))
}
