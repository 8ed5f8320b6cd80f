package pagedir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilck-go/tilck/mm/physalloc"
)

func newPD(t *testing.T, mode ForkMode) (*PageDir, *physalloc.Allocator) {
	alloc := physalloc.New(0, 64)
	kh := NewKernelHalf()
	return New(alloc, kh, mode), alloc
}

// TestRemapAfterUnmap backs spec.md invariant 2.
func TestRemapAfterUnmap(t *testing.T) {
	pd, alloc := newPD(t, ForkCoW)
	f, ok := alloc.AllocFrame()
	require.True(t, ok)

	require.NoError(t, pd.MapPage(10, f, FlagUser|FlagWrite))
	assert.True(t, pd.UnmapPage(10))
	assert.False(t, pd.IsMapped(10))

	require.NoError(t, pd.MapPage(10, f, FlagUser|FlagWrite))
	got, flags, ok := pd.GetMapping(10)
	require.True(t, ok)
	assert.Equal(t, f, got)
	assert.Equal(t, FlagUser|FlagWrite, flags)
}

func TestMapAlreadyMappedIsError(t *testing.T) {
	pd, alloc := newPD(t, ForkCoW)
	f, _ := alloc.AllocFrame()
	require.NoError(t, pd.MapPage(1, f, FlagUser|FlagWrite))
	err := pd.MapPage(1, f, FlagUser|FlagWrite)
	assert.Error(t, err)
}

func TestUnmapUnmappedIsNoop(t *testing.T) {
	pd, _ := newPD(t, ForkCoW)
	assert.False(t, pd.UnmapPage(99))
}

// TestForkNoCowMemoryIsolation backs S4: eager fork gives the child a
// private copy, so writes in either task are invisible to the other.
func TestForkNoCowMemoryIsolation(t *testing.T) {
	pd, alloc := newPD(t, ForkEager)
	f, _ := alloc.AllocFrame()
	mem := map[physalloc.Frame][]byte{f: {0xef, 0xbe, 0xad, 0xde}}

	require.NoError(t, pd.MapPage(0x1000, f, FlagUser|FlagWrite))

	allocFrame := func() (physalloc.Frame, bool) {
		nf, ok := alloc.AllocFrame()
		if ok {
			mem[nf] = append([]byte(nil), []byte{0, 0, 0, 0}...)
		}
		return nf, ok
	}
	copyPage := func(src, dst physalloc.Frame) {
		copy(mem[dst], mem[src])
	}

	child := pd.CloneForFork(allocFrame, copyPage)
	childFrame, _, ok := child.GetMapping(0x1000)
	require.True(t, ok)
	require.NotEqual(t, f, childFrame, "eager fork must not alias the parent frame")

	// child writes 0x11223344
	mem[childFrame][0], mem[childFrame][1], mem[childFrame][2], mem[childFrame][3] = 0x44, 0x33, 0x22, 0x11
	// parent's original frame is untouched
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, mem[f])
}

func TestCowFaultUpgradesSoleOwnerInPlace(t *testing.T) {
	pd, alloc := newPD(t, ForkCoW)
	f, _ := alloc.AllocFrame()
	require.NoError(t, pd.MapPage(5, f, FlagUser|FlagWrite))

	allocFrame := func() (physalloc.Frame, bool) { return alloc.AllocFrame() }
	copyPage := func(src, dst physalloc.Frame) {}

	child := pd.CloneForFork(allocFrame, copyPage)
	_ = child
	// the child drops its reference (simulating a child that exits without
	// touching the page), so the parent is again the frame's sole owner
	child.UnmapPage(5)

	_, flags, _ := pd.GetMapping(5)
	require.True(t, flags&FlagCoW != 0)

	require.NoError(t, pd.CowFault(5, allocFrame, copyPage))
	_, flags, _ = pd.GetMapping(5)
	assert.True(t, flags&FlagWrite != 0)
	assert.True(t, flags&FlagCoW == 0)
}
