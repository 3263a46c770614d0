package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter stores fixed-window attempt counters.
type Counter interface {
	// Incr adds one to key and returns the new value. The window expiry is applied when
	// the returned value is 1.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Get returns the current value, or 0 for a missing or expired key.
	Get(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisCounter is a [Counter] on Redis INCR/EXPIRE.
type RedisCounter struct {
	redis redis.UniversalClient
}

// NewRedisCounter wraps client.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{redis: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := c.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (c *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	count, err := c.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

func (c *RedisCounter) Del(ctx context.Context, keys ...string) error {
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

type memoryEntry struct {
	count   int64
	expires time.Time
}

// MemoryCounter is a process-local [Counter].
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCounter returns an empty MemoryCounter. now may be nil.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{entries: make(map[string]memoryEntry), now: now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok || !now.Before(e.expires) {
		e = memoryEntry{expires: now.Add(window)}
	}
	e.count++
	c.entries[key] = e
	return e.count, nil
}

func (c *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return 0, nil
	}
	return e.count, nil
}

func (c *MemoryCounter) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}
