package market

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingNeverExceedsCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, capacity := range []int{1, 2, 7, 100} {
		r := NewRing[int](capacity)
		pushes := rng.Intn(500)
		for i := 0; i < pushes; i++ {
			r.Push(i)
			require.LessOrEqual(t, r.Len(), capacity)
		}
		assert.Equal(t, min(pushes, capacity), r.Len())
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	r := NewRing[int](3)
	assert.False(t, r.Push(1))
	assert.False(t, r.Push(2))
	assert.False(t, r.Push(3))
	assert.True(t, r.Push(4))

	assert.Equal(t, []int{2, 3, 4}, r.Items())
	assert.Equal(t, []int{3, 4}, r.Latest(2))
	assert.Equal(t, []int{2, 3, 4}, r.Latest(10))
	assert.Nil(t, r.Latest(0))
}

func TestRingItemsAreCopies(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	items := r.Items()
	items[0] = 99
	assert.Equal(t, []int{1}, r.Items())
}

func TestRingEmpty(t *testing.T) {
	r := NewRing[string](0)
	assert.Equal(t, 1, r.Cap())
	assert.Nil(t, r.Latest(1))
	assert.Empty(t, r.Items())
}

func TestRingDrain(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 4; i++ {
		r.Push(i)
	}
	assert.Equal(t, []int{2, 3, 4}, r.Drain())
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.Drain())

	r.Push(9)
	assert.Equal(t, []int{9}, r.Items())
}
