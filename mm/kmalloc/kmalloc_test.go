package kmalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeap() *Heap {
	return NewHeap(0x1000, 1024, 16, 256, AllowSplit, Hooks{})
}

func TestAllocSplitsAndMarksAllocated(t *testing.T) {
	h := testHeap()
	a, ok := h.Alloc(20) // rounds up to 32
	require.True(t, ok)
	b, ok := h.Alloc(20)
	require.True(t, ok)
	assert.NotEqual(t, a, b)
}

func TestZeroSizeAllocFails(t *testing.T) {
	h := testHeap()
	_, ok := h.Alloc(0)
	assert.False(t, ok)
}

func TestFreeCoalescesSiblings(t *testing.T) {
	h := testHeap()
	full := h.FreeLeafCount()

	a, ok := h.Alloc(16)
	require.True(t, ok)
	b, ok := h.Alloc(16)
	require.True(t, ok)
	assert.Less(t, h.FreeLeafCount(), full)

	h.Free(a)
	h.Free(b)
	assert.Equal(t, full, h.FreeLeafCount(), "freeing everything must restore full free count")
}

// TestFreeCountNeverRegresses backs spec.md invariant 1: for any
// alloc/free sequence, the free count after freeing every allocation is
// >= the initial free count.
func TestFreeCountNeverRegresses(t *testing.T) {
	h := testHeap()
	initial := h.FreeLeafCount()

	sizes := []uint{16, 32, 64, 16, 128, 32}
	var allocated []uintptr
	for _, s := range sizes {
		v, ok := h.Alloc(s)
		if ok {
			allocated = append(allocated, v)
		}
	}
	for _, v := range allocated {
		h.Free(v)
	}
	assert.GreaterOrEqual(t, h.FreeLeafCount(), initial)
}

func TestDoubleFreePanics(t *testing.T) {
	h := testHeap()
	v, _ := h.Alloc(16)
	h.Free(v)
	assert.Panics(t, func() { h.Free(v) })
}

func TestUnknownPointerFreePanics(t *testing.T) {
	h := testHeap()
	assert.Panics(t, func() { h.Free(0xdeadbeef) })
}

func TestLazyPhysicalBacking(t *testing.T) {
	var allocated, freed []uintptr
	h := NewHeap(0, 1024, 64, 256, AllowSplit, Hooks{
		AllocBlock: func(vaddr uintptr, size uint) bool {
			allocated = append(allocated, vaddr)
			return true
		},
		FreeBlock: func(vaddr uintptr, size uint) {
			freed = append(freed, vaddr)
		},
	})
	v, ok := h.Alloc(256)
	require.True(t, ok)
	assert.Len(t, allocated, 1, "crossing an alloc-block boundary should materialize physical backing once")

	h.Free(v)
	assert.Len(t, freed, 1, "freeing a fully-free alloc-block-sized subtree should release backing")
}

func TestEngineScansLargestFirst(t *testing.T) {
	big := NewHeap(0x10000, 1024, 16, 256, AllowSplit, Hooks{})
	small := NewHeap(0x20000, 256, 16, 256, AllowSplit, Hooks{})
	e := NewEngine(small, big)

	v, ok := e.Kmalloc(512)
	require.True(t, ok, "only the big heap can satisfy a 512 byte request")
	assert.True(t, v >= big.Base && v < big.Base+uintptr(big.Size))

	e.Kfree(v)
}

func TestEngineKfreeUnknownPointerPanics(t *testing.T) {
	e := NewEngine(testHeap())
	assert.Panics(t, func() { e.Kfree(0x99999999) })
}
