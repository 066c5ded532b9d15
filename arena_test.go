package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocRelease(t *testing.T) {
	a := newArena(3)
	assert.Equal(t, 3, a.capacity())
	assert.Equal(t, 3, a.freeCount())

	h1, err := a.alloc()
	require.NoError(t, err)
	h2, err := a.alloc()
	require.NoError(t, err)
	h3, err := a.alloc()
	require.NoError(t, err)
	assert.Equal(t, 0, a.freeCount())

	// distinct handles, never aliased
	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h2, h3)
	assert.NotEqual(t, h1, h3)

	_, err = a.alloc()
	assert.Equal(t, ErrCapacityExhausted, err)

	a.release(h2)
	assert.Equal(t, 1, a.freeCount())

	h4, err := a.alloc()
	require.NoError(t, err)
	assert.Equal(t, h2, h4)
}

func TestArenaSlotsAreStable(t *testing.T) {
	a := newArena(2)

	h1, err := a.alloc()
	require.NoError(t, err)
	a.at(h1).order = Order{ID: 42, Quantity: 7}

	h2, err := a.alloc()
	require.NoError(t, err)
	a.at(h2).order = Order{ID: 43, Quantity: 9}

	// the first slot is untouched by later allocations
	assert.Equal(t, uint64(42), a.at(h1).order.ID)
	assert.Equal(t, uint64(7), a.at(h1).order.Quantity)
}
