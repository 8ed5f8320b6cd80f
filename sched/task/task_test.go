package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/mm/physalloc"
)

func newTestProcess(t *testing.T, mode pagedir.ForkMode) *Process {
	t.Helper()
	alloc := physalloc.New(0x100000, 64)
	mem := physalloc.NewMemory()
	kh := pagedir.NewKernelHalf()
	return NewProcess(alloc, mem, kh, mode)
}

func TestNewTaskStartsRunnable(t *testing.T) {
	p := newTestProcess(t, pagedir.ForkCoW)
	tsk := NewTask(p)
	assert.Equal(t, Runnable, tsk.State)
	assert.Equal(t, p.PID, tsk.TID)
}

func TestForkLinksChild(t *testing.T) {
	p := newTestProcess(t, pagedir.ForkCoW)
	child, err := p.Fork()
	require.NoError(t, err)
	assert.NotEqual(t, p.PID, child.PID)
	require.Len(t, p.Children(), 1)
	assert.Equal(t, child, p.Children()[0])
}

func TestExitMarksZombieAndFreesResources(t *testing.T) {
	p := newTestProcess(t, pagedir.ForkCoW)
	require.NoError(t, p.PageDir.MapPage(1, 0x100000, pagedir.FlagUser|pagedir.FlagWrite))
	p.Exit(7)
	assert.True(t, p.Exited)
	assert.Equal(t, 7, p.ExitCode)
	assert.False(t, p.PageDir.IsMapped(1))
}

func TestReapRemovesChild(t *testing.T) {
	p := newTestProcess(t, pagedir.ForkCoW)
	child, err := p.Fork()
	require.NoError(t, err)
	p.Reap(child)
	assert.Empty(t, p.Children())
}

func TestAllocPIDIsMonotonic(t *testing.T) {
	a := AllocPID()
	b := AllocPID()
	assert.Greater(t, b, a)
}
