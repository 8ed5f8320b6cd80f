package kmalloc

import "sync"

// Engine is the multi-heap allocator spec.md §4.3 describes: several heaps
// in decreasing size, scanned from largest to smallest heap that is big
// enough for the request.
type Engine struct {
	mu    sync.Mutex
	heaps []*Heap // kept sorted largest-first
}

// NewEngine builds an engine managing the given heaps, which it sorts
// largest-first (callers may pass them in any order).
func NewEngine(heaps ...*Heap) *Engine {
	e := &Engine{heaps: append([]*Heap(nil), heaps...)}
	// simple insertion sort, descending by Size — heap counts are tiny
	for i := 1; i < len(e.heaps); i++ {
		for j := i; j > 0 && e.heaps[j].Size > e.heaps[j-1].Size; j-- {
			e.heaps[j], e.heaps[j-1] = e.heaps[j-1], e.heaps[j]
		}
	}
	return e
}

// AddHeap registers another heap with the engine (e.g. a late-bound
// per-process mmap heap), preserving largest-first order.
func (e *Engine) AddHeap(h *Heap) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heaps = append(e.heaps, h)
	for i := len(e.heaps) - 1; i > 0 && e.heaps[i].Size > e.heaps[i-1].Size; i-- {
		e.heaps[i], e.heaps[i-1] = e.heaps[i-1], e.heaps[i]
	}
}

// Kmalloc scans heaps from largest to smallest for one that can satisfy
// size, returning ok == false (ENOMEM at the caller) if none can.
func (e *Engine) Kmalloc(size uint) (vaddr uintptr, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.heaps {
		if size > h.Size {
			continue
		}
		if v, ok := h.Alloc(size); ok {
			return v, true
		}
	}
	return 0, false
}

// Kzalloc is Kmalloc followed by zeroing, via the caller-supplied zero
// hook (the engine has no notion of how to write into the simulated
// address space backing a vaddr).
func (e *Engine) Kzalloc(size uint, zero func(vaddr uintptr, size uint)) (vaddr uintptr, ok bool) {
	vaddr, ok = e.Kmalloc(size)
	if ok && zero != nil {
		zero(vaddr, size)
	}
	return vaddr, ok
}

// Kfree releases a previously-allocated vaddr, found by probing the heap
// whose range contains it. An unknown pointer is a programmer error,
// panicking exactly as spec.md §4.3 requires.
func (e *Engine) Kfree(vaddr uintptr) {
	e.mu.Lock()
	h := e.heapFor(vaddr)
	e.mu.Unlock()
	h.Free(vaddr)
}

func (e *Engine) heapFor(vaddr uintptr) *Heap {
	for _, h := range e.heaps {
		if vaddr >= h.Base && vaddr < h.Base+uintptr(h.Size) {
			return h
		}
	}
	panic("kmalloc: kfree of pointer outside any managed heap")
}
