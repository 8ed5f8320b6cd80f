// Package pagedir models a per-address-space virtual-to-physical mapping,
// per spec.md §4.2. It does not touch real page tables; it is the
// authoritative in-process record a real kernel would keep in hardware,
// which is all the invariants in spec.md care about.
package pagedir

import (
	"sync"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/physalloc"
)

// VPN is a virtual page number (virtual address / PageSize).
type VPN uintptr

const PageSize = physalloc.PageSize

// Flags carried alongside a mapping.
type Flags uint8

const (
	FlagUser  Flags = 1 << iota // user-accessible; absent means supervisor-only
	FlagWrite                   // writable
	FlagCoW                     // copy-on-write: present but not directly writable
)

// PTE is one page-table-entry-equivalent record.
type PTE struct {
	Frame physalloc.Frame
	Flags Flags
}

// frameRefs tracks how many address spaces currently alias one physical
// frame, the bookkeeping CoW needs to know whether a fault can upgrade a
// mapping in place or must copy.
type frameRefs struct {
	mu   sync.Mutex
	refs map[physalloc.Frame]int
}

func newFrameRefs() *frameRefs {
	return &frameRefs{refs: make(map[physalloc.Frame]int)}
}

func (r *frameRefs) incr(f physalloc.Frame) {
	r.mu.Lock()
	r.refs[f]++
	r.mu.Unlock()
}

// decr returns the refcount remaining after the decrement.
func (r *frameRefs) decr(f physalloc.Frame) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[f]--
	n := r.refs[f]
	if n <= 0 {
		delete(r.refs, f)
	}
	return n
}

func (r *frameRefs) count(f physalloc.Frame) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.refs[f]; ok {
		return n
	}
	return 1
}

// PageDir is one address space: a private user half plus a pointer to the
// kernel half it shares with every other PageDir, per spec.md §3's
// invariant ("kernel half is identical in all address spaces; user half is
// private").
type PageDir struct {
	mu       sync.RWMutex
	user     map[VPN]PTE
	kernel   *kernelHalf
	alloc    *physalloc.Allocator
	refs     *frameRefs
	forkMode ForkMode
	brk      VPN
	mmapNext VPN
}

// ForkMode selects the spec.md §4.2 clone_for_fork policy.
type ForkMode int

const (
	// ForkCoW: pages are marked read-only + FlagCoW and duplicated lazily
	// on the first write fault.
	ForkCoW ForkMode = iota
	// ForkEager (FORK_NO_COW): every user page is duplicated immediately.
	ForkEager
)

type kernelHalf struct {
	mu      sync.RWMutex
	entries map[VPN]PTE
}

// KernelHalf is the single shared kernel address range, aliased by every
// PageDir's top-level entries as spec.md requires.
type KernelHalf struct {
	h *kernelHalf
}

// NewKernelHalf creates the one kernel half shared by every address space
// created afterwards.
func NewKernelHalf() KernelHalf {
	return KernelHalf{h: &kernelHalf{entries: make(map[VPN]PTE)}}
}

// Heap/mmap regions are disjoint fixed bands in this simulated address
// space, avoiding any need to model a real linker-assigned layout.
const (
	heapBase = VPN(0x1000)
	mmapBase = VPN(0x100000)
)

// New creates a fresh address space sharing kh's kernel half.
func New(alloc *physalloc.Allocator, kh KernelHalf, mode ForkMode) *PageDir {
	return &PageDir{
		user:     make(map[VPN]PTE),
		kernel:   kh.h,
		alloc:    alloc,
		refs:     newFrameRefs(),
		forkMode: mode,
		brk:      heapBase,
		mmapNext: mmapBase,
	}
}

// Brk returns the current heap-end pointer, per spec.md §6's brk()
// surface.
func (pd *PageDir) Brk() VPN {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	return pd.brk
}

// SetBrk records a new heap-end pointer after the caller has mapped the
// pages in between.
func (pd *PageDir) SetBrk(v VPN) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pd.brk = v
}

// NextFreeVPN returns (and reserves) the next unused address in the
// mmap band, for mmap() calls that don't request a fixed address.
func (pd *PageDir) NextFreeVPN() VPN {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	v := pd.mmapNext
	pd.mmapNext += 0x1000 // reserve a generous gap; exact sizing happens via MapPages' count
	return v
}

// MapPage installs a single mapping. Mapping an already-mapped page is an
// error (EINVAL), per spec.md §4.2.
func (pd *PageDir) MapPage(va VPN, pa physalloc.Frame, flags Flags) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.mapLocked(va, pa, flags)
}

func (pd *PageDir) mapLocked(va VPN, pa physalloc.Frame, flags Flags) error {
	if flags&FlagUser == 0 {
		if _, ok := pd.kernel.entries[va]; ok {
			return kerr.EINVAL
		}
		pd.kernel.mu.Lock()
		pd.kernel.entries[va] = PTE{Frame: pa, Flags: flags}
		pd.kernel.mu.Unlock()
		return nil
	}
	if _, ok := pd.user[va]; ok {
		return kerr.EINVAL
	}
	pd.user[va] = PTE{Frame: pa, Flags: flags}
	pd.refs.incr(pa)
	return nil
}

// MapPages maps `count` consecutive pages starting at va/pa. On partial
// failure it returns the number of pages successfully mapped and the
// caller is responsible for unmapping that prefix, per spec.md §4.2.
func (pd *PageDir) MapPages(va VPN, pa physalloc.Frame, count int, flags Flags) (mapped int, err error) {
	for i := 0; i < count; i++ {
		if err = pd.MapPage(va+VPN(i), pa+physalloc.Frame(i*PageSize), flags); err != nil {
			return i, err
		}
	}
	return count, nil
}

// UnmapPage removes a mapping. Unmapping an unmapped page returns false
// with no effect, per spec.md §4.2.
func (pd *PageDir) UnmapPage(va VPN) (unmapped bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pte, ok := pd.user[va]
	if !ok {
		return false
	}
	delete(pd.user, va)
	pd.refs.decr(pte.Frame)
	return true
}

// IsMapped reports whether va currently has a mapping.
func (pd *PageDir) IsMapped(va VPN) bool {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	_, ok := pd.user[va]
	return ok
}

// GetMapping returns the current frame and flags for va, if mapped.
func (pd *PageDir) GetMapping(va VPN) (physalloc.Frame, Flags, bool) {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	pte, ok := pd.user[va]
	return pte.Frame, pte.Flags, ok
}

// Destroy walks only the user half, per spec.md §4.2 ("destroying a pdir
// walks only the user half"), releasing frames whose refcount drops to 0.
func (pd *PageDir) Destroy(free func(physalloc.Frame)) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	for va, pte := range pd.user {
		delete(pd.user, va)
		if pd.refs.decr(pte.Frame) == 0 {
			free(pte.Frame)
		}
	}
}

// CloneForFork implements spec.md §4.2's two-mode clone_for_fork. alloc and
// copyPage are supplied by the caller (process.Fork) since only it knows
// how to allocate a fresh frame and copy page contents between two
// simulated address spaces.
func (pd *PageDir) CloneForFork(alloc func() (physalloc.Frame, bool), copyPage func(src, dst physalloc.Frame)) *PageDir {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	child := &PageDir{
		user:     make(map[VPN]PTE, len(pd.user)),
		kernel:   pd.kernel,
		alloc:    pd.alloc,
		refs:     pd.refs,
		forkMode: pd.forkMode,
		brk:      pd.brk,
		mmapNext: pd.mmapNext,
	}

	switch pd.forkMode {
	case ForkEager:
		for va, pte := range pd.user {
			newFrame, ok := alloc()
			kerr.Assert(ok, "pagedir: out of memory during eager fork")
			copyPage(pte.Frame, newFrame)
			child.user[va] = PTE{Frame: newFrame, Flags: pte.Flags}
			pd.refs.incr(newFrame)
		}
	default: // ForkCoW
		for va, pte := range pd.user {
			if pte.Flags&FlagWrite != 0 {
				pte.Flags = (pte.Flags &^ FlagWrite) | FlagCoW
				pd.user[va] = pte
			}
			child.user[va] = pte
			pd.refs.incr(pte.Frame)
		}
	}
	return child
}

// CowFault handles a write fault on a CoW page, per spec.md §4.2: if the
// source frame's refcount is 1 the mapping is upgraded writable in place;
// otherwise a fresh frame is allocated, contents copied, and the mapping
// rewritten writable.
func (pd *PageDir) CowFault(va VPN, alloc func() (physalloc.Frame, bool), copyPage func(src, dst physalloc.Frame)) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	pte, ok := pd.user[va]
	if !ok || pte.Flags&FlagCoW == 0 {
		return kerr.EINVAL
	}
	if pd.refs.count(pte.Frame) == 1 {
		pte.Flags = (pte.Flags &^ FlagCoW) | FlagWrite
		pd.user[va] = pte
		return nil
	}
	newFrame, ok := alloc()
	if !ok {
		return kerr.ENOMEM
	}
	copyPage(pte.Frame, newFrame)
	pd.refs.decr(pte.Frame)
	pd.user[va] = PTE{Frame: newFrame, Flags: (pte.Flags &^ FlagCoW) | FlagWrite}
	return nil
}
