package throttle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGate_BlockAndExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewMemoryGate()
	g.now = func() time.Time { return now }

	remaining, err := g.BlockedFor(ctx, "bubble")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	require.NoError(t, g.BlockFor(ctx, "bubble", 30*time.Second))
	remaining, _ = g.BlockedFor(ctx, "bubble")
	assert.Equal(t, 30*time.Second, remaining)

	now = now.Add(31 * time.Second)
	remaining, _ = g.BlockedFor(ctx, "bubble")
	assert.Zero(t, remaining)
}

func TestMemoryGate_ShorterBlockKeepsLongerWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewMemoryGate()
	g.now = func() time.Time { return now }

	require.NoError(t, g.BlockFor(ctx, "bubble", time.Minute))
	require.NoError(t, g.BlockFor(ctx, "bubble", time.Second))

	remaining, _ := g.BlockedFor(ctx, "bubble")
	assert.Equal(t, time.Minute, remaining)
}

func TestMemoryGate_IgnoresNonPositive(t *testing.T) {
	g := NewMemoryGate()
	require.NoError(t, g.BlockFor(context.Background(), "bubble", 0))

	remaining, _ := g.BlockedFor(context.Background(), "bubble")
	assert.Zero(t, remaining)
}

func TestWait_ReturnsWhenOpen(t *testing.T) {
	g := NewMemoryGate()
	require.NoError(t, g.BlockFor(context.Background(), "bubble", 20*time.Millisecond))

	start := time.Now()
	require.NoError(t, Wait(context.Background(), g, "bubble"))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestWait_HonorsContext(t *testing.T) {
	g := NewMemoryGate()
	require.NoError(t, g.BlockFor(context.Background(), "bubble", time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Wait(ctx, g, "bubble")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	_, ok := New(nil, "").(*MemoryGate)
	assert.True(t, ok)
}

func TestRedisGate(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	g := NewRedisGate(rdb, "linker:test:throttle:")
	defer rdb.Del(ctx, g.blockKey("bubble"))

	remaining, err := g.BlockedFor(ctx, "bubble")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	require.NoError(t, g.BlockFor(ctx, "bubble", 5*time.Second))
	remaining, err = g.BlockedFor(ctx, "bubble")
	require.NoError(t, err)
	assert.Greater(t, remaining, 4*time.Second)
	assert.LessOrEqual(t, remaining, 5*time.Second)
}
