// Package kmalloc implements the kernel's buddy allocator over a
// contiguous virtual range, per spec.md §4.3: a binary tree of blocks
// where each node is split/full/allocated, with physical backing
// materialized lazily at "alloc block" granularity.
package kmalloc

import (
	"github.com/tilck-go/tilck/kerr"
)

// nodeState is the per-node status spec.md §3 calls "a binary-tree-of-blocks
// bitmap indicating split/full/allocated state per node".
type nodeState uint8

const (
	stateFree nodeState = iota
	stateSplit
	stateAllocated
)

// HeapFlags select the heap-variant behaviors named in spec.md §4.3.
type HeapFlags uint8

const (
	// MultiStep allows a single allocation request to split more than one
	// level at once instead of only one level per call (this is the
	// default descent behavior; the flag documents the intent).
	MultiStep HeapFlags = 1 << iota
	// AllowSplit permits descending into subtrees smaller than
	// AllocBlockSize (otherwise allocations bottom out at AllocBlockSize).
	AllowSplit
	// NoActualFree skips calling FreeBlock when a subtree becomes fully
	// free; used by heaps whose backing memory must never be released
	// (e.g. the kernel's own permanently-mapped first heap).
	NoActualFree
	// NoActualAlloc skips calling AllocBlock; used when backing memory is
	// already mapped ahead of time (e.g. the initial low-memory heap
	// mapped during boot).
	NoActualAlloc
)

// Hooks materialize/release the physical backing of a block. AllocBlock is
// called when a single block of at least AllocBlockSize bytes is allocated,
// and FreeBlock when such a block is freed, each with that block's address
// and size. Blocks smaller than AllocBlockSize are handed out and freed
// without calling either hook, and a larger free block formed only by
// merging free buddies does not trigger FreeBlock.
type Hooks struct {
	AllocBlock func(vaddr uintptr, size uint) bool
	FreeBlock  func(vaddr uintptr, size uint)
}

// Heap is one buddy-allocator arena: `[Base, Base+Size)`, Size and
// MinBlockSize both powers of two, AllocBlockSize a multiple of the page
// size, per spec.md §3.
type Heap struct {
	Base           uintptr
	Size           uint
	MinBlockSize   uint
	AllocBlockSize uint
	Flags          HeapFlags
	hooks          Hooks

	leafCount int
	nodes     []nodeState
	allocSize map[uintptr]uint // vaddr -> size, for Kfree without a size hint mismatch check
}

// NewHeap constructs a heap. size and minBlockSize must be powers of two;
// allocBlockSize must be a multiple of the page size (4096).
func NewHeap(base uintptr, size, minBlockSize, allocBlockSize uint, flags HeapFlags, hooks Hooks) *Heap {
	kerr.Assert(isPow2(size), "kmalloc: heap size must be a power of two")
	kerr.Assert(isPow2(minBlockSize), "kmalloc: min block size must be a power of two")
	kerr.Assert(allocBlockSize%4096 == 0, "kmalloc: alloc block size must be page-sized")
	leafCount := int(size / minBlockSize)
	return &Heap{
		Base:           base,
		Size:           size,
		MinBlockSize:   minBlockSize,
		AllocBlockSize: allocBlockSize,
		Flags:          flags,
		hooks:          hooks,
		leafCount:      leafCount,
		nodes:          make([]nodeState, 2*leafCount),
		allocSize:      make(map[uintptr]uint),
	}
}

func isPow2(n uint) bool { return n != 0 && n&(n-1) == 0 }

func nextPow2(n uint) uint {
	p := uint(1)
	for p < n {
		p <<= 1
	}
	return p
}

// nodeSize returns the byte size a tree node of the given depth covers.
func (h *Heap) nodeSize(depth int) uint {
	return h.Size >> uint(depth)
}

// Alloc finds the smallest power-of-two block >= size and returns its
// virtual address, or ok == false on exhaustion or a zero-size request
// (spec.md §4.3: "size 0 -> None").
func (h *Heap) Alloc(size uint) (vaddr uintptr, ok bool) {
	if size == 0 {
		return 0, false
	}
	want := nextPow2(size)
	if want < h.MinBlockSize {
		want = h.MinBlockSize
	}
	if h.Flags&AllowSplit == 0 && want < h.AllocBlockSize {
		want = h.AllocBlockSize
	}
	if want > h.Size {
		return 0, false
	}
	off, ok := h.allocNode(0, 0, want)
	if !ok {
		return 0, false
	}
	vaddr = h.Base + off
	h.allocSize[vaddr] = want
	return vaddr, true
}

// allocNode descends from node `idx` at `depth` (covering `h.nodeSize(depth)`
// bytes starting at a given offset, tracked implicitly by idx's position)
// looking for a free block of exactly `want` bytes. Returns the byte offset
// from Base.
func (h *Heap) allocNode(idx, depth int, want uint) (uintptr, bool) {
	sz := h.nodeSize(depth)
	if sz < want {
		return 0, false
	}
	switch h.nodes[idx] {
	case stateAllocated:
		return 0, false
	case stateFree:
		if sz == want {
			h.markAllocated(idx, depth)
			return h.offsetOf(idx, depth), true
		}
		// split this node and recurse into the left child first
		h.nodes[idx] = stateSplit
		return h.allocNode(2*idx+1, depth+1, want)
	default: // stateSplit
		if off, ok := h.allocNode(2*idx+1, depth+1, want); ok {
			return off, true
		}
		if off, ok := h.allocNode(2*idx+2, depth+1, want); ok {
			return off, true
		}
		return 0, false
	}
}

// offsetOf computes the byte offset of node idx at depth within the heap by
// walking from the root, using the fact idx encodes a path as a binary
// heap index.
func (h *Heap) offsetOf(idx, depth int) uintptr {
	sz := h.nodeSize(depth)
	// Re-derive the path: at depth d, idx - (2^d - 1) is this node's
	// position among its siblings at that depth.
	firstAtDepth := (1 << uint(depth)) - 1
	pos := idx - firstAtDepth
	return uintptr(pos) * uintptr(sz)
}

func (h *Heap) markAllocated(idx, depth int) {
	h.nodes[idx] = stateAllocated
	if h.Flags&NoActualAlloc == 0 && h.nodeSize(depth) >= h.AllocBlockSize {
		off := h.offsetOf(idx, depth)
		if h.hooks.AllocBlock != nil {
			h.hooks.AllocBlock(h.Base+off, h.nodeSize(depth))
		}
	}
}

// Free releases the block at vaddr and coalesces it with free siblings.
// Physical backing is released (FreeBlock) only when the freed block itself
// is at least AllocBlockSize bytes; see Hooks.
func (h *Heap) Free(vaddr uintptr) {
	size, ok := h.allocSize[vaddr]
	kerr.Assert(ok, "kmalloc: kfree of unknown pointer %#x", vaddr)
	delete(h.allocSize, vaddr)
	off := vaddr - h.Base
	depth := depthForSize(h.Size, size)
	idx := h.nodeIndexFor(off, depth)
	h.freeNode(idx, depth)
}

func depthForSize(heapSize, blockSize uint) int {
	d := 0
	for heapSize>>uint(d) > blockSize {
		d++
	}
	return d
}

func (h *Heap) nodeIndexFor(off uintptr, depth int) int {
	sz := h.nodeSize(depth)
	pos := int(off / uintptr(sz))
	firstAtDepth := (1 << uint(depth)) - 1
	return firstAtDepth + pos
}

// freeNode marks idx free and merges upward while both children of a
// parent are free.
func (h *Heap) freeNode(idx, depth int) {
	kerr.Assert(h.nodes[idx] == stateAllocated, "kmalloc: double-free or corrupt block state")
	h.nodes[idx] = stateFree
	if h.Flags&NoActualFree == 0 && h.nodeSize(depth) >= h.AllocBlockSize {
		off := h.offsetOf(idx, depth)
		if h.hooks.FreeBlock != nil {
			h.hooks.FreeBlock(h.Base+off, h.nodeSize(depth))
		}
	}
	h.mergeUp(idx, depth)
}

func (h *Heap) mergeUp(idx, depth int) {
	for depth > 0 {
		parent := (idx - 1) / 2
		left := 2*parent + 1
		right := 2*parent + 2
		if h.nodes[left] != stateFree || h.nodes[right] != stateFree {
			return
		}
		h.nodes[parent] = stateFree
		idx, depth = parent, depth-1
	}
}

// FreeLeafCount returns how many MinBlockSize-sized leaves are currently
// free, used by tests to check Invariant 1 (free count never regresses
// below the starting point after a balanced alloc/free sequence).
func (h *Heap) FreeLeafCount() int {
	return h.countFree(0, 0, h.leafCount)
}

func (h *Heap) countFree(idx, depth, leavesUnderNode int) int {
	switch h.nodes[idx] {
	case stateFree:
		return leavesUnderNode
	case stateAllocated:
		return 0
	default:
		half := leavesUnderNode / 2
		return h.countFree(2*idx+1, depth+1, half) + h.countFree(2*idx+2, depth+1, half)
	}
}
