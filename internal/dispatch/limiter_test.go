package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucketRefillsContinuously(t *testing.T) {
	clk := &manualClock{t: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
	b := NewTokenBucket(3, time.Hour, clk.now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := b.Allow(ctx, "alerts")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := b.Allow(ctx, "alerts")
	assert.False(t, ok, "bucket exhausted")

	ok, _ = b.Allow(ctx, "other")
	assert.True(t, ok, "keys are independent")

	clk.advance(19 * time.Minute)
	ok, _ = b.Allow(ctx, "alerts")
	assert.False(t, ok, "0.95 tokens refilled")

	clk.advance(time.Minute)
	ok, _ = b.Allow(ctx, "alerts")
	assert.True(t, ok, "one token after a third of the period")

	clk.advance(10 * time.Hour)
	for i := 0; i < 3; i++ {
		ok, _ = b.Allow(ctx, "alerts")
		assert.True(t, ok)
	}
	ok, _ = b.Allow(ctx, "alerts")
	assert.False(t, ok, "refill is capped at capacity")
}

func TestTokenBucketSetRate(t *testing.T) {
	clk := &manualClock{t: time.Unix(1_700_000_000, 0)}
	b := NewTokenBucket(10, time.Hour, clk.now)
	ctx := context.Background()
	ok, _ := b.Allow(ctx, "k")
	require.True(t, ok)

	b.SetRate(1)
	ok, _ = b.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = b.Allow(ctx, "k")
	assert.False(t, ok)
}

type fakeBackend struct {
	keys   []string
	limits []int
	allow  bool
	err    error
}

func (f *fakeBackend) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	f.limits = append(f.limits, limit)
	return f.allow, f.err
}

func TestRemoteLimiter(t *testing.T) {
	backend := &fakeBackend{allow: true}
	l := NewRemoteLimiter(backend, "insiderwatch:", 10, time.Hour)

	ok, err := l.Allow(context.Background(), "alerts")
	require.NoError(t, err)
	assert.True(t, ok)

	l.SetRate(4)
	backend.err = errors.New("down")
	_, err = l.Allow(context.Background(), "alerts:discord")
	assert.Error(t, err)

	assert.Equal(t, []string{"insiderwatch:alerts", "insiderwatch:alerts:discord"}, backend.keys)
	assert.Equal(t, []int{10, 4}, backend.limits)
}
