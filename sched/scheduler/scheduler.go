// Package scheduler implements the run-queue state machine of spec.md
// §4.3: a pure, directly-testable model of task selection and preemption
// accounting. It does not itself block goroutines (ksync and waitobj own
// the real blocking primitives); it is the bookkeeping a real scheduler
// tick would consult to decide who runs next.
package scheduler

import (
	"sync"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/sched/task"
)

// DefaultQuantum is the number of ticks a task runs before Tick forces a
// reschedule, per spec.md §4.3.
const DefaultQuantum = 20

// Scheduler holds the run queue and the currently running task. It is a
// round-robin scheduler ordered by Priority per spec.md §4.3: within a
// priority band, tasks run in the order they became runnable.
type Scheduler struct {
	mu      sync.Mutex
	runq    []*task.Task
	running *task.Task
	quantum int
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{quantum: DefaultQuantum}
}

// Enqueue marks t Runnable and appends it to the run queue. Enqueuing an
// already-queued task is a no-op, per spec.md §4.3's idempotence note.
func (s *Scheduler) Enqueue(t *task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == s.running {
		return
	}
	for _, q := range s.runq {
		if q == t {
			return
		}
	}
	t.State = task.Runnable
	t.TicksLeft = s.quantum
	s.runq = append(s.runq, t)
}

// pickLocked returns the index of the highest-priority, longest-waiting
// runnable task, or -1 if the queue is empty.
func (s *Scheduler) pickLocked() int {
	best := -1
	for i, t := range s.runq {
		if best == -1 || t.Priority > s.runq[best].Priority {
			best = i
		}
	}
	return best
}

// Schedule picks the next task to run, per spec.md §4.3's "pick
// highest-priority runnable task, FIFO within a band" rule. It returns nil
// if the run queue is empty (the idle state).
func (s *Scheduler) Schedule() *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil {
		s.runq = append(s.runq, s.running)
		s.running = nil
	}
	idx := s.pickLocked()
	if idx == -1 {
		return nil
	}
	t := s.runq[idx]
	s.runq = append(s.runq[:idx], s.runq[idx+1:]...)
	t.State = task.Running
	t.TicksLeft = s.quantum
	s.running = t
	return t
}

// Running returns the currently scheduled task, or nil if idle.
func (s *Scheduler) Running() *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick decrements the running task's quantum, reporting whether its
// quantum has just expired (the caller should then call Yield/Schedule).
func (s *Scheduler) Tick() (expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running == nil {
		return false
	}
	s.running.TicksLeft--
	return s.running.TicksLeft <= 0
}

// Yield voluntarily gives up the CPU: the running task goes back to the
// tail of the run queue (if still Runnable) and the scheduler picks the
// next task, per spec.md §4.3.
func (s *Scheduler) Yield() *task.Task {
	s.mu.Lock()
	if s.running != nil && s.running.State == task.Running {
		s.running.State = task.Runnable
	}
	s.mu.Unlock()
	return s.Schedule()
}

// Block removes the running task from scheduling entirely (it is
// responsible for re-Enqueue-ing itself once its wait object signals),
// per spec.md §4.3/§4.4.
func (s *Scheduler) Block(t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != t {
		return kerr.EINVAL
	}
	t.State = task.Sleeping
	s.running = nil
	return nil
}

// RunQueueLen reports how many tasks are currently waiting to run
// (excluding the running task), for tests and /proc-style introspection.
func (s *Scheduler) RunQueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runq)
}
