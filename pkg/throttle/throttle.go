// Package throttle shares upstream back-off windows between workers. When
// Bubble answers 429 with Retry-After, every worker stops calling it until
// the window expires.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Gate interface {
	// BlockFor closes the gate for key during d. Non-positive d is a no-op.
	BlockFor(ctx context.Context, key string, d time.Duration) error
	// BlockedFor returns how long key stays closed, zero when open.
	BlockedFor(ctx context.Context, key string) (time.Duration, error)
}

// Wait blocks until key is open or ctx is done.
func Wait(ctx context.Context, g Gate, key string) error {
	for {
		remaining, err := g.BlockedFor(ctx, key)
		if err != nil || remaining <= 0 {
			return err
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// New returns a Redis-backed gate when rdb is non-nil, an in-process one
// otherwise.
func New(rdb *redis.Client, keyPrefix string) Gate {
	if rdb == nil {
		return NewMemoryGate()
	}
	return NewRedisGate(rdb, keyPrefix)
}

type RedisGate struct {
	rdb       *redis.Client
	keyPrefix string
}

func NewRedisGate(rdb *redis.Client, keyPrefix string) *RedisGate {
	if keyPrefix == "" {
		keyPrefix = "linker:throttle:"
	}
	return &RedisGate{rdb: rdb, keyPrefix: keyPrefix}
}

func (g *RedisGate) blockKey(key string) string {
	return g.keyPrefix + key + ":block"
}

func (g *RedisGate) BlockFor(ctx context.Context, key string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return g.rdb.Set(ctx, g.blockKey(key), "1", d).Err()
}

func (g *RedisGate) BlockedFor(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := g.rdb.PTTL(ctx, g.blockKey(key)).Result()
	if err != nil {
		return 0, err
	}
	// -2: missing key, -1: no expiry. Neither is a block we set.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

type MemoryGate struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryGate() *MemoryGate {
	return &MemoryGate{
		until: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (g *MemoryGate) BlockFor(_ context.Context, key string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	// A shorter window never shortens an existing block.
	if deadline := g.now().Add(d); deadline.After(g.until[key]) {
		g.until[key] = deadline
	}
	return nil
}

func (g *MemoryGate) BlockedFor(_ context.Context, key string) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	deadline, ok := g.until[key]
	if !ok {
		return 0, nil
	}
	remaining := deadline.Sub(g.now())
	if remaining <= 0 {
		delete(g.until, key)
		return 0, nil
	}
	return remaining, nil
}
