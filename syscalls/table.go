// Package syscalls implements the Linux-ABI-compatible syscall surface of
// spec.md §6: a number-indexed dispatch table whose handlers operate on a
// per-task Context bundling the process's address space, fd table, and
// mount namespace. Every handler returns (value, error); irq.SyscallEntry
// is what turns that into the wire's negative-errno convention.
package syscalls

import (
	"fmt"

	"github.com/tilck-go/tilck/irq"
	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/mm/physalloc"
	"github.com/tilck-go/tilck/process"
	"github.com/tilck-go/tilck/sched/task"
	"github.com/tilck-go/tilck/usercopy"
	"github.com/tilck-go/tilck/vfs"
)

// Numbers, aliased to their x86-64 Linux syscall numbers so a devshell
// program's raw syscall() calls line up with real libc expectations, per
// spec.md §6.
const (
	SysRead        = 0
	SysWrite       = 1
	SysOpen        = 2
	SysClose       = 3
	SysStat        = 4
	SysFstat       = 5
	SysLseek       = 8
	SysMmap        = 9
	SysMunmap      = 11
	SysBrk         = 12
	SysRtSigaction = 13
	SysIoctl       = 16
	SysDup         = 32
	SysDup2        = 33
	SysPoll        = 7
	SysSelect      = 23
	SysFork        = 57
	SysVfork       = 58
	SysExecve      = 59
	SysExit        = 60
	SysWait4       = 61
	SysKill        = 62
	SysFcntl       = 72
	SysGetdents64  = 217
	SysGetcwd      = 79
	SysChdir       = 80
	SysMkdir       = 83
	SysRmdir       = 84
	SysUnlink      = 87
	SysRename      = 82
	SysChmod       = 90
	SysGettimeofday = 96
	SysGetpid      = 39
	SysPipe        = 22
	SysRtSigprocmask = 14
	SysRtSigreturn   = 15
	SysPause         = 34
	SysRtSigsuspend  = 130
)

// Context bundles the per-task state a handler needs: the process, task,
// and kernel-wide managers wired together at boot.
type Context struct {
	Task    *task.Task
	Proc    *task.Process
	Space   *usercopy.Space
	Mount   *vfs.MountTable
	Procs   *process.Manager
	Alloc   *physalloc.Allocator
	Mem     *physalloc.Memory
	KernHalf pagedir.KernelHalf
}

// Handler is one syscall's implementation.
type Handler func(ctx *Context, args [6]int64) (int64, error)

// Table is the syscall number -> handler map, per spec.md §6.
type Table struct {
	handlers map[int]Handler
}

// NewTable returns a table with every syscall spec.md §6 names
// registered.
func NewTable() *Table {
	t := &Table{handlers: make(map[int]Handler)}
	t.registerFileOps()
	t.registerDirOps()
	t.registerMMOps()
	t.registerProcessOps()
	t.registerMiscOps()
	t.registerSignalOps()
	return t
}

// Register installs (or overrides, for tests) a handler for nr.
func (t *Table) Register(nr int, h Handler) {
	t.handlers[nr] = h
}

// Dispatch looks up and invokes the handler for nr, returning ENOSYS if
// unregistered, per spec.md §6/§7.
func (t *Table) Dispatch(ctx *Context, nr int, args [6]int64) (int64, error) {
	h, ok := t.handlers[nr]
	if !ok {
		return 0, kerr.ENOSYS
	}
	return h(ctx, args)
}

// Enter is the full syscall entry path a real caller (as opposed to a
// test exercising one handler in isolation via Dispatch) drives: nr's
// handler runs under irq.SyscallEntry's nested-interrupt/panic/errno
// wrapping, and on the way back out to user mode any signal that became
// deliverable while the handler ran is delivered, per spec.md §4.7's
// "signals are checked on syscall return" rule.
func (t *Table) Enter(stack *irq.Stack, ctx *Context, nr int, args [6]int64) int64 {
	ret := irq.SyscallEntry(stack, fmt.Sprintf("sys_%d", nr), func() (int64, error) {
		return t.Dispatch(ctx, nr, args)
	})
	if sig := ctx.Task.Sig.Deliverable(); sig != 0 {
		deliverSignal(ctx, sig)
	}
	return ret
}
