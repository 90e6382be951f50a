package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"verbs-tickets/internal/logger"
)

// CounterStore counts hits per key inside a fixed window. Incr returns the
// count including the current hit; the first hit starts the window.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
}

// Limiter is a fixed-window rate limiter. It fails open: a broken counter
// store lets traffic through rather than blocking legitimate requests.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	logger *logger.Logger
}

func NewLimiter(store CounterStore, limit int, window time.Duration, log *logger.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: log,
	}
}

// Allow reports whether the caller identified by key is inside its budget.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	count, err := l.store.Incr(ctx, "ratelimit:"+key, l.window)
	if err != nil {
		l.logger.Warn("RATELIMIT", fmt.Sprintf("Counter store failed for %s, allowing request: %v", key, err))
		return true
	}
	return count <= l.limit
}

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// sweepInterval bounds how often the memory store scans for dead windows.
const sweepInterval = time.Minute

// MemoryStore is the in-process counter used when Redis is not configured.
// Windows are tracked per key; expired entries are reclaimed by a periodic
// sweep inside Incr, so one-off keys cannot accumulate forever.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	nextSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   map[string]*memoryEntry{},
		nextSweep: time.Now().Add(sweepInterval),
	}
}

func (m *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.sweepLocked(now)

	entry, ok := m.entries[key]
	if !ok || now.After(entry.resetAt) {
		m.entries[key] = &memoryEntry{count: 1, resetAt: now.Add(window)}
		return 1, nil
	}
	entry.count++
	return entry.count, nil
}

func (m *MemoryStore) sweepLocked(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for key, entry := range m.entries {
		if now.After(entry.resetAt) {
			delete(m.entries, key)
		}
	}
	m.nextSweep = now.Add(sweepInterval)
}

// RedisStore counts hits in Redis so the budget holds across instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return int(count), nil
}
