// Package ksync provides the kernel's blocking synchronization primitives:
// a strict-FIFO mutex and a condition variable, per spec.md §4.5. Tasks are
// identified by an opaque int64 id (the caller's tid) rather than a
// *task.Task, so this package has no dependency on sched/task and can sit
// underneath it in the import graph.
package ksync

import (
	"sync"

	"github.com/tilck-go/tilck/kerr"
)

// MutexFlags mirror spec.md §4.5's {Recursive, AllowLockWithPreemptDisabled}.
type MutexFlags uint8

const (
	Recursive MutexFlags = 1 << iota
	AllowLockWithPreemptDisabled
)

type waiter struct {
	taskID int64
	wake   chan struct{}
}

// Mutex is a strict-FIFO lock: if task A calls Lock before task B, A is
// guaranteed to acquire before B on Unlock, per spec.md §4.5 and the
// Invariant-4 testable property.
type Mutex struct {
	mu     sync.Mutex
	owner  int64
	held   bool
	count  uint32
	queue  []waiter
	flags  MutexFlags
}

// NewMutex constructs a mutex with the given flags.
func NewMutex(flags MutexFlags) *Mutex {
	return &Mutex{flags: flags}
}

// Lock blocks the calling goroutine (standing in for the calling task)
// until it owns the mutex.
func (m *Mutex) Lock(taskID int64) {
	m.mu.Lock()
	if !m.held {
		m.held = true
		m.owner = taskID
		m.count = 1
		m.mu.Unlock()
		return
	}
	if m.flags&Recursive != 0 && m.owner == taskID {
		m.count++
		m.mu.Unlock()
		return
	}
	w := waiter{taskID: taskID, wake: make(chan struct{})}
	m.queue = append(m.queue, w)
	m.mu.Unlock()
	<-w.wake // ownership is handed to us by Unlock before it signals
}

// TryLock attempts to acquire without blocking. It fails immediately if the
// mutex is held by another task, per spec.md §4.5.
func (m *Mutex) TryLock(taskID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held {
		m.held = true
		m.owner = taskID
		m.count = 1
		return true
	}
	if m.flags&Recursive != 0 && m.owner == taskID {
		m.count++
		return true
	}
	return false
}

// Unlock releases the mutex. Unlock by a non-owner is a programmer error,
// asserted per spec.md §4.5. Ownership transfers to the head of the wait
// queue (if any), which is made runnable by closing its wake channel;
// otherwise the mutex becomes free.
func (m *Mutex) Unlock(taskID int64) {
	m.mu.Lock()
	kerr.Assert(m.held && m.owner == taskID, "ksync: unlock by non-owner task %d (owner=%d)", taskID, m.owner)
	if m.flags&Recursive != 0 && m.count > 1 {
		m.count--
		m.mu.Unlock()
		return
	}
	if len(m.queue) == 0 {
		m.held = false
		m.owner = 0
		m.count = 0
		m.mu.Unlock()
		return
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.owner = next.taskID
	m.count = 1
	m.mu.Unlock()
	close(next.wake)
}

// WaitQueueLen reports the number of tasks currently queued behind the
// owner. Exported so tests can observe FIFO ordering deterministically
// without racing the scheduler (see ksync's mutex_test.go).
func (m *Mutex) WaitQueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Owner returns the current owning task id, or 0 if unheld.
func (m *Mutex) Owner() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}
