// Package timerwheel implements the kernel's sleep-until-deadline queue of
// spec.md §4.3. Rather than the literal per-tick O(N) scan spec.md
// describes, this implementation keeps a deheap.Deheap min-heap keyed on
// deadline (see DESIGN.md for the rationale) so Tick only pops timers that
// have actually expired.
package timerwheel

import (
	"sync"

	"github.com/aalpar/deheap"

	"github.com/tilck-go/tilck/sched/waitobj"
)

// Timer is one scheduled wakeup.
type Timer struct {
	Deadline uint64 // absolute tick count
	Obj      *waitobj.WaitObj
	index    int // heap bookkeeping, managed by deheap
	canceled bool
}

type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].Deadline < h[j].Deadline }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Wheel is the kernel's single timer queue, per spec.md §3 ("Timer
// wheel"): tasks sleeping for a bounded duration register a Timer here
// instead of busy-polling.
type Wheel struct {
	mu  sync.Mutex
	h   timerHeap
	now uint64
}

// New returns an empty wheel.
func New() *Wheel {
	w := &Wheel{}
	deheap.Init(&w.h)
	return w
}

// Schedule registers a timer that fires at ticksFromNow ticks in the
// future, signaling obj on expiry. Returns the Timer handle so the caller
// can Cancel it (e.g. a blocking read() that completes before its
// deadline).
func (w *Wheel) Schedule(ticksFromNow uint64, obj *waitobj.WaitObj) *Timer {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := &Timer{Deadline: w.now + ticksFromNow, Obj: obj}
	deheap.Push(&w.h, t)
	return t
}

// Cancel removes t from the wheel if it hasn't fired yet, per spec.md
// §4.3's "canceling a timer that already fired is a no-op" rule.
func (w *Wheel) Cancel(t *Timer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.canceled || t.index < 0 || t.index >= len(w.h) || w.h[t.index] != t {
		return
	}
	deheap.Remove(&w.h, t.index)
	t.canceled = true
}

// Tick advances the wheel's clock by one and signals every timer whose
// deadline has now passed, per spec.md §4.3.
func (w *Wheel) Tick() []*Timer {
	w.mu.Lock()
	w.now++
	var fired []*Timer
	for w.h.Len() > 0 && w.h[0].Deadline <= w.now {
		t := deheap.Pop(&w.h).(*Timer)
		t.canceled = true
		fired = append(fired, t)
	}
	w.mu.Unlock()

	for _, t := range fired {
		t.Obj.Signal()
	}
	return fired
}

// Now returns the wheel's current tick count.
func (w *Wheel) Now() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}

// Len reports how many timers are currently pending.
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.h.Len()
}
