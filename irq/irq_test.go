package irq

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tilck-go/tilck/kerr"
)

func TestSyscallEntryReturnsValueOnSuccess(t *testing.T) {
	var stack Stack
	ret := SyscallEntry(&stack, "getpid", func() (int64, error) { return 42, nil })
	assert.Equal(t, int64(42), ret)
	assert.Equal(t, int32(0), stack.Depth())
}

func TestSyscallEntryReturnsNegativeErrno(t *testing.T) {
	var stack Stack
	ret := SyscallEntry(&stack, "open", func() (int64, error) { return 0, kerr.ENOENT })
	assert.Equal(t, kerr.ENOENT.Negated(), ret)
}

func TestSyscallEntryRecoversPanic(t *testing.T) {
	var stack Stack
	ret := SyscallEntry(&stack, "read", func() (int64, error) { panic("boom") })
	assert.Equal(t, kerr.EIO.Negated(), ret)
	assert.Equal(t, int32(0), stack.Depth(), "stack must unwind even after a recovered panic")
}

func TestLeaveOnEmptyStackPanics(t *testing.T) {
	var stack Stack
	assert.Panics(t, func() { stack.Leave() })
}

func TestDispatcherRunsAllHandlersForLine(t *testing.T) {
	var stack Stack
	d := NewDispatcher(&stack)
	calls := 0
	d.Register(1, func() { calls++ })
	d.Register(1, func() { calls++ })
	d.Dispatch(1)
	assert.Equal(t, 2, calls)
}

func TestInIRQReflectsNesting(t *testing.T) {
	var stack Stack
	assert.False(t, stack.InIRQ())
	stack.Enter()
	assert.True(t, stack.InIRQ())
	stack.Leave()
	assert.False(t, stack.InIRQ())
}
