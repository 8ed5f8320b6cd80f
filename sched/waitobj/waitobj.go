// Package waitobj implements the generic "thing a task can block on" of
// spec.md §4.4: a task sleeping on one or more wait objects is woken when
// any of them becomes ready, mirroring Tilck's kcond/kmutex-backed
// wait_obj but generalized to cover timers and multi-object waits (used by
// select()/poll()).
package waitobj

import "sync"

// Type identifies what kind of event a WaitObj represents, for tracing and
// for poll()'s revents construction.
type Type int

const (
	TypeKmutex Type = iota
	TypeKcond
	TypeTimer
	TypeTask // a wait on another task's state change
)

// WaitObj is one thing a task is blocked on.
type WaitObj struct {
	mu    sync.Mutex
	typ   Type
	ready bool
	subs  []chan struct{}
}

// New returns an unready wait object of the given type.
func New(t Type) *WaitObj {
	return &WaitObj{typ: t}
}

// Type reports the wait object's kind.
func (w *WaitObj) Type() Type { return w.typ }

// Ready reports whether the object is currently signaled.
func (w *WaitObj) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

// Signal marks the object ready and wakes every current waiter. Per
// spec.md §4.4, level-triggered objects (kmutex availability, pending
// child state) stay ready until explicitly Reset.
func (w *WaitObj) Signal() {
	w.mu.Lock()
	w.ready = true
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

// Reset clears readiness, for edge-triggered reuse (e.g. a one-shot
// timer firing again on rearm).
func (w *WaitObj) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = false
}

// subscribe returns a channel that closes the next time w becomes ready,
// or nil immediately if it already is.
func (w *WaitObj) subscribe() chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ready {
		return nil
	}
	ch := make(chan struct{})
	w.subs = append(w.subs, ch)
	return ch
}

// MultiWaiter blocks a task until any one of several wait objects becomes
// ready, the primitive select()/poll() build on per spec.md §4.4/§6.
type MultiWaiter struct {
	objs []*WaitObj
}

// NewMultiWaiter returns a waiter over objs.
func NewMultiWaiter(objs ...*WaitObj) *MultiWaiter {
	return &MultiWaiter{objs: objs}
}

// WaitAny blocks until at least one of the waiter's objects is ready, then
// returns the indices of every object that is ready at that moment (so a
// single wakeup can satisfy a poll() covering several ready fds at once).
// done, if non-nil, aborts the wait early (used to implement signal
// interruption of a blocking syscall).
func (m *MultiWaiter) WaitAny(done <-chan struct{}) []int {
	if idx := m.readyNow(); len(idx) > 0 {
		return idx
	}
	subs := make([]chan struct{}, len(m.objs))
	for i, o := range m.objs {
		subs[i] = o.subscribe()
	}
	// A nil subscribe channel means the object turned ready between the
	// first readyNow check and subscribing; recheck once more before
	// blocking for real.
	if idx := m.readyNow(); len(idx) > 0 {
		return idx
	}
	woken := make(chan struct{})
	var once sync.Once
	for _, ch := range subs {
		if ch == nil {
			continue
		}
		go func(ch chan struct{}) {
			<-ch
			once.Do(func() { close(woken) })
		}(ch)
	}
	select {
	case <-woken:
	case <-done:
	}
	return m.readyNow()
}

func (m *MultiWaiter) readyNow() []int {
	var idx []int
	for i, o := range m.objs {
		if o.Ready() {
			idx = append(idx, i)
		}
	}
	return idx
}
