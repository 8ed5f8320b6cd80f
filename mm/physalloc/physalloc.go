// Package physalloc tracks free physical page frames and gives/takes them
// one at a time, per spec.md §4.1.
package physalloc

import (
	"sync"

	"github.com/tilck-go/tilck/kerr"
)

// PageSize is the frame size assumed throughout the kernel (4 KiB on x86,
// per spec.md §3).
const PageSize = 4096

// Frame is a physical frame identifier: a page-aligned physical address.
type Frame uintptr

// Allocator is a bitset-backed free-frame tracker. The zero value is not
// usable; construct with New.
//
// No locking is required by spec.md's contract ("single CPU + caller
// disables interrupts when racing IRQ-context frees"), but Allocator still
// carries a mutex: tests and cmd/devshell run the simulated kernel across
// goroutines standing in for "tasks", so the single critical section here
// plays the role interrupts-disabled plays on real hardware.
type Allocator struct {
	mu        sync.Mutex
	base      Frame
	total     int
	free      []bool // free[i] == true means frame i is free
	freeCount int
	lastFreed int // lowest index scanned from, for O(1)-ish reuse locality
}

// New creates an allocator managing `total` frames starting at physical
// address `base` (must already be page-aligned by the caller).
func New(base Frame, total int) *Allocator {
	a := &Allocator{
		base:      base,
		total:     total,
		free:      make([]bool, total),
		freeCount: total,
	}
	for i := range a.free {
		a.free[i] = true
	}
	return a
}

// AllocFrame returns the lowest-indexed free frame, or ok == false when
// physical memory is exhausted (the caller surfaces ENOMEM per spec.md
// §4.1).
func (a *Allocator) AllocFrame() (frame Frame, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < a.total; i++ {
		idx := (a.lastFreed + i) % a.total
		if a.free[idx] {
			a.free[idx] = false
			a.freeCount--
			a.lastFreed = idx
			return a.base + Frame(idx*PageSize), true
		}
	}
	return 0, false
}

// FreeFrame releases a frame previously returned by AllocFrame. Freeing a
// frame twice is a programmer error, asserted per spec.md §4.1.
func (a *Allocator) FreeFrame(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := a.index(f)
	kerr.Assert(!a.free[idx], "physalloc: double-free of frame %#x", uintptr(f))
	a.free[idx] = true
	a.freeCount++
	if idx < a.lastFreed {
		a.lastFreed = idx
	}
}

// FreeCount returns the number of currently-free frames.
func (a *Allocator) FreeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeCount
}

// TotalCount returns the total number of frames under management.
func (a *Allocator) TotalCount() int {
	return a.total
}

func (a *Allocator) index(f Frame) int {
	kerr.Assert(f >= a.base, "physalloc: frame %#x below base %#x", uintptr(f), uintptr(a.base))
	idx := int((f - a.base) / PageSize)
	kerr.Assert(idx >= 0 && idx < a.total, "physalloc: frame %#x out of range", uintptr(f))
	return idx
}
