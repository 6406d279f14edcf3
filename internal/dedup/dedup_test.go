package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestIsDuplicateWithinTTL(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	w := New(10*time.Minute, WithClock(clk.now))

	assert.False(t, w.IsDuplicate("m1|VOLUME_SPIKE|HIGH"))
	assert.True(t, w.IsDuplicate("m1|VOLUME_SPIKE|HIGH"))
	assert.False(t, w.IsDuplicate("m1|VOLUME_SPIKE|CRITICAL"))

	clk.advance(9 * time.Minute)
	assert.True(t, w.IsDuplicate("m1|VOLUME_SPIKE|HIGH"))

	// The window is anchored at the first sighting, not extended by repeats.
	clk.advance(time.Minute)
	assert.False(t, w.IsDuplicate("m1|VOLUME_SPIKE|HIGH"))
}

func TestZeroTTLDisablesSuppression(t *testing.T) {
	w := New(0)
	assert.False(t, w.IsDuplicate("k"))
	assert.False(t, w.IsDuplicate("k"))
	assert.Equal(t, 0, w.Len())
}

func TestCleanupDropsExpired(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	w := New(time.Minute, WithClock(clk.now))
	w.IsDuplicate("a")
	clk.advance(30 * time.Second)
	w.IsDuplicate("b")
	clk.advance(40 * time.Second)

	assert.Equal(t, 1, w.Cleanup())
	assert.Equal(t, 1, w.Len())
	assert.True(t, w.IsDuplicate("b"))
}
