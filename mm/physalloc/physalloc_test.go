package physalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New(0x100000, 4)
	assert.Equal(t, 4, a.FreeCount())

	f1, ok := a.AllocFrame()
	require.True(t, ok)
	assert.Equal(t, Frame(0x100000), f1)
	assert.Equal(t, 3, a.FreeCount())

	f2, ok := a.AllocFrame()
	require.True(t, ok)
	assert.Equal(t, Frame(0x100000+PageSize), f2)

	a.FreeFrame(f1)
	assert.Equal(t, 3, a.FreeCount())

	f3, ok := a.AllocFrame()
	require.True(t, ok)
	assert.Equal(t, f1, f3, "lowest free index should be reused")
}

func TestAllocExhaustion(t *testing.T) {
	a := New(0, 2)
	_, ok := a.AllocFrame()
	require.True(t, ok)
	_, ok = a.AllocFrame()
	require.True(t, ok)
	_, ok = a.AllocFrame()
	assert.False(t, ok, "allocator should report exhaustion instead of panicking")
}

func TestDoubleFreePanics(t *testing.T) {
	a := New(0, 1)
	f, _ := a.AllocFrame()
	a.FreeFrame(f)
	assert.Panics(t, func() { a.FreeFrame(f) })
}
