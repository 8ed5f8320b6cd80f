// Package tracing implements the kernel's syscall/event trace ring buffer,
// supplementing spec.md §5's observability surface with the kind of
// debug tracepoint feed Tilck's own kernel exposes through /sys. Readers
// block on a condition variable until new events land, mirroring ksync's
// kcond pattern; an event whose (subsystem, message) pair was already
// emitted within a short TTL is dropped via a go-cache entry, even if other
// events came in between, so a noisy tracepoint (e.g. a tight poll() loop)
// doesn't flood the ring.
package tracing

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tilck-go/tilck/ksync"
)

// Event is one trace record.
type Event struct {
	Seq     uint64
	Subsys  string
	Message string
	TaskID  int64
}

// Buffer is a fixed-capacity ring of Events.
type Buffer struct {
	mu       sync.Mutex
	cond     *ksync.Kcond
	events   []Event
	cap      int
	head     int // index of the oldest event
	len      int
	nextSeq  uint64
	dedup    *cache.Cache
}

// New returns a ring buffer holding up to capacity events.
func New(capacity int) *Buffer {
	return &Buffer{
		cond:   ksync.NewKcond(),
		events: make([]Event, capacity),
		cap:    capacity,
		dedup:  cache.New(200*time.Millisecond, time.Second),
	}
}

// Emit appends an event, overwriting the oldest one if the ring is full,
// and wakes any blocked reader. An event whose (subsys, message) pair was
// already emitted within the dedup TTL is dropped, whether or not other
// events came in between, per spec.md §5's "avoid trace
// storms" requirement.
func (b *Buffer) Emit(subsys, message string, taskID int64) {
	key := subsys + "\x00" + message
	if _, hit := b.dedup.Get(key); hit {
		return
	}
	b.dedup.SetDefault(key, struct{}{})

	b.mu.Lock()
	ev := Event{Seq: b.nextSeq, Subsys: subsys, Message: message, TaskID: taskID}
	b.nextSeq++
	idx := (b.head + b.len) % b.cap
	b.events[idx] = ev
	if b.len < b.cap {
		b.len++
	} else {
		b.head = (b.head + 1) % b.cap
	}
	b.mu.Unlock()

	b.cond.SignalAll()
}

// Snapshot returns every currently buffered event, oldest first.
func (b *Buffer) Snapshot() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, b.len)
	for i := 0; i < b.len; i++ {
		out[i] = b.events[(b.head+i)%b.cap]
	}
	return out
}

// Len reports how many events are currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.len
}

// WaitForSeq blocks the calling reader task (identified only for the
// mutex's strict-FIFO bookkeeping) until an event with Seq >= minSeq has
// landed, then returns the buffer's current snapshot.
func (b *Buffer) WaitForSeq(taskID int64, minSeq uint64, m *ksync.Mutex) []Event {
	m.Lock(taskID)
	defer m.Unlock(taskID)
	for {
		b.mu.Lock()
		have := b.len > 0 && b.events[(b.head+b.len-1)%b.cap].Seq >= minSeq
		b.mu.Unlock()
		if have {
			return b.Snapshot()
		}
		b.cond.Wait(m, taskID, 0)
	}
}
