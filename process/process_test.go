package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/mm/physalloc"
	"github.com/tilck-go/tilck/sched/task"
	"github.com/tilck-go/tilck/signal"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	alloc := physalloc.New(0x100000, 64)
	mem := physalloc.NewMemory()
	return NewManager(alloc, mem)
}

func TestInitCreatesRootProcess(t *testing.T) {
	m := newManager(t)
	p := m.Init(pagedir.ForkCoW)
	got, ok := m.Get(p.PID)
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestForkRegistersChild(t *testing.T) {
	m := newManager(t)
	parent := m.Init(pagedir.ForkCoW)
	child, err := m.Fork(parent)
	require.NoError(t, err)
	_, ok := m.Get(child.PID)
	assert.True(t, ok)
}

func TestVforkSharesPageDir(t *testing.T) {
	m := newManager(t)
	parent := m.Init(pagedir.ForkCoW)
	child, err := m.Vfork(parent)
	require.NoError(t, err)
	assert.Same(t, parent.PageDir, child.PageDir)
}

func TestExecveResetsHandlersButKeepsPending(t *testing.T) {
	m := newManager(t)
	p := m.Init(pagedir.ForkCoW)
	tsk := task.NewTask(p)
	tsk.Sig.Raise(2)
	tsk.Sig.SetHandler(2, signal.Handler{Disposition: signal.Custom, Fn: 0xdeadbeef})

	m.Execve(tsk)

	assert.True(t, tsk.Sig.Pending.Has(2), "pending signals survive execve")
	assert.Equal(t, signal.Default, tsk.Sig.Handlers[2].Disposition, "handler resets to default on execve")
}

func TestWait4ReapsExitedChild(t *testing.T) {
	m := newManager(t)
	parent := m.Init(pagedir.ForkCoW)
	child, err := m.Fork(parent)
	require.NoError(t, err)

	m.Exit(child, parent.PID, 42)

	pid, status, err := m.Wait4(parent, nil)
	require.NoError(t, err)
	assert.Equal(t, child.PID, pid)
	assert.Equal(t, 42, status)
	assert.Empty(t, parent.Children())
}

func TestWait4WithNoChildrenReturnsECHILD(t *testing.T) {
	m := newManager(t)
	parent := m.Init(pagedir.ForkCoW)
	_, _, err := m.Wait4(parent, nil)
	assert.ErrorIs(t, err, kerr.ECHILD)
}

func TestForkConsumesAndWait4ReturnsKernelStackFrames(t *testing.T) {
	alloc := physalloc.New(0x100000, 64)
	mem := physalloc.NewMemory()
	m := NewManager(alloc, mem)

	parent := m.Init(pagedir.ForkCoW)
	before := alloc.FreeCount()

	child, err := m.Fork(parent)
	require.NoError(t, err)
	assert.Less(t, alloc.FreeCount(), before, "forking a child commits at least one kernel-stack frame")

	m.Exit(child, parent.PID, 0)
	_, _, err = m.Wait4(parent, nil)
	require.NoError(t, err)
	assert.Equal(t, before, alloc.FreeCount(), "reaping the child returns its kernel-stack frame")
}

func TestKillRejectsOutOfRangeSignal(t *testing.T) {
	m := newManager(t)
	p := m.Init(pagedir.ForkCoW)
	tsk := task.NewTask(p)
	err := Kill(tsk, 0)
	assert.ErrorIs(t, err, kerr.EINVAL)
}
