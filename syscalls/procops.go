package syscalls

import (
	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/process"
	"github.com/tilck-go/tilck/sched/task"
	"github.com/tilck-go/tilck/signal"
)

func (t *Table) registerProcessOps() {
	t.Register(SysFork, sysFork)
	t.Register(SysVfork, sysVfork)
	t.Register(SysExecve, sysExecve)
	t.Register(SysExit, sysExit)
	t.Register(SysWait4, sysWait4)
	t.Register(SysKill, sysKill)
	t.Register(SysRtSigaction, sysRtSigaction)
	t.Register(SysGetpid, sysGetpid)
}

func sysFork(ctx *Context, args [6]int64) (int64, error) {
	child, err := ctx.Procs.Fork(ctx.Proc)
	if err != nil {
		return 0, err
	}
	return child.PID, nil
}

func sysVfork(ctx *Context, args [6]int64) (int64, error) {
	child, err := ctx.Procs.Vfork(ctx.Proc)
	if err != nil {
		return 0, err
	}
	return child.PID, nil
}

// sysExecve only performs the process-state transition (handler reset,
// CLOEXEC fd closure); loading a binary image is outside this kernel's
// scope (no ELF loader), matching spec.md's Non-goals.
func sysExecve(ctx *Context, args [6]int64) (int64, error) {
	ctx.Procs.Execve(ctx.Task)
	return 0, nil
}

func sysExit(ctx *Context, args [6]int64) (int64, error) {
	parentPID := int64(0)
	ctx.Procs.Exit(ctx.Proc, parentPID, int(args[0]))
	ctx.Task.State = task.Zombie
	return 0, nil
}

func sysWait4(ctx *Context, args [6]int64) (int64, error) {
	pid, status, err := ctx.Procs.Wait4(ctx.Proc, nil)
	if err != nil {
		return 0, err
	}
	_ = status
	return pid, nil
}

func sysKill(ctx *Context, args [6]int64) (int64, error) {
	pid, sig := args[0], int(args[1])
	tsk, ok := ctx.Procs.Task(pid)
	if !ok {
		return 0, kerr.ESRCH
	}
	return 0, process.Kill(tsk, sig)
}

func sysRtSigaction(ctx *Context, args [6]int64) (int64, error) {
	sig := int(args[0])
	fn := uintptr(args[1])
	if !ctx.Task.Sig.SetHandler(sig, signal.Handler{Disposition: signal.Custom, Fn: fn}) {
		return 0, kerr.EINVAL
	}
	return 0, nil
}

func sysGetpid(ctx *Context, args [6]int64) (int64, error) {
	return ctx.Proc.PID, nil
}
