package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/sched/task"
)

func tsk(tid int64, prio int) *task.Task {
	return &task.Task{TID: tid, Priority: prio, State: task.Runnable}
}

func TestScheduleFIFOWithinPriorityBand(t *testing.T) {
	s := New()
	a, b, c := tsk(1, 0), tsk(2, 0), tsk(3, 0)
	s.Enqueue(a)
	s.Enqueue(b)
	s.Enqueue(c)

	assert.Same(t, a, s.Schedule())
	assert.Same(t, b, s.Schedule())
	assert.Same(t, c, s.Schedule())
}

func TestScheduleHonorsPriority(t *testing.T) {
	s := New()
	low := tsk(1, 0)
	high := tsk(2, 5)
	s.Enqueue(low)
	s.Enqueue(high)
	assert.Same(t, high, s.Schedule())
}

func TestRunningTaskRequeuedOnNextSchedule(t *testing.T) {
	s := New()
	a, b := tsk(1, 0), tsk(2, 0)
	s.Enqueue(a)
	s.Enqueue(b)
	require.Same(t, a, s.Schedule())
	assert.Same(t, a, s.Running())

	// Scheduling again without blocking/yielding puts a back in the queue
	// behind b.
	next := s.Schedule()
	assert.Same(t, b, next)
}

func TestTickExpiresQuantum(t *testing.T) {
	s := New()
	s.quantum = 2
	a := tsk(1, 0)
	s.Enqueue(a)
	s.Schedule()
	assert.False(t, s.Tick())
	assert.True(t, s.Tick())
}

func TestBlockRemovesRunningTask(t *testing.T) {
	s := New()
	a := tsk(1, 0)
	s.Enqueue(a)
	s.Schedule()
	require.NoError(t, s.Block(a))
	assert.Nil(t, s.Running())
	assert.Equal(t, task.Sleeping, a.State)
}

func TestBlockRejectsNonRunningTask(t *testing.T) {
	s := New()
	a, b := tsk(1, 0), tsk(2, 0)
	s.Enqueue(a)
	s.Enqueue(b)
	s.Schedule()
	assert.Error(t, s.Block(b))
}

func TestYieldRotatesRunQueue(t *testing.T) {
	s := New()
	a, b := tsk(1, 0), tsk(2, 0)
	s.Enqueue(a)
	s.Enqueue(b)
	s.Schedule() // a runs
	next := s.Yield()
	assert.Same(t, b, next)
}

func TestEnqueueIsIdempotentForRunningTask(t *testing.T) {
	s := New()
	a := tsk(1, 0)
	s.Enqueue(a)
	s.Schedule()
	s.Enqueue(a)
	assert.Equal(t, 0, s.RunQueueLen())
}
