package syscalls

import (
	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/sched/task"
	"github.com/tilck-go/tilck/signal"
	"github.com/tilck-go/tilck/usercopy"
)

func (t *Table) registerSignalOps() {
	t.Register(SysPause, sysPause)
	t.Register(SysRtSigprocmask, sysRtSigprocmask)
	t.Register(SysRtSigreturn, sysRtSigreturn)
	t.Register(SysRtSigsuspend, sysRtSigsuspend)
}

// rt_sigprocmask's how values, per Linux's signal.h.
const (
	SigBlock   = 0
	SigUnblock = 1
	SigSetmask = 2
)

// deliverSignal applies sig's disposition against ctx.Task: a Custom
// handler is bracketed with EnterHandler/Sigreturn (this substrate has no
// real user-mode trampoline to jump to, so "running the handler" is the
// mask bookkeeping a trampoline would otherwise do around the call);
// anything else falls through to its default, which terminates the
// process when spec.md §4.7 says it should. Called both from pause()/
// sigsuspend() and from Table.Enter's syscall-return check.
func deliverSignal(ctx *Context, sig int) {
	h := ctx.Task.Sig.Handlers[sig]
	ctx.Task.Sig.Consume(sig)
	if h.Disposition == signal.Custom {
		ctx.Task.Sig.EnterHandler(sig)
		ctx.Task.Sig.Sigreturn()
		return
	}
	if signal.DefaultIsTerminating(sig) {
		ctx.Procs.Exit(ctx.Proc, 0, 128+sig)
		ctx.Task.State = task.Zombie
	}
}

// sysPause implements pause(): block until the task has a deliverable
// signal, deliver exactly that one, and return -EINTR, per spec.md §6's
// pause() contract and §8's S2 scenario.
func sysPause(ctx *Context, args [6]int64) (int64, error) {
	sig := ctx.Task.Sig.WaitPending()
	deliverSignal(ctx, sig)
	return -1, kerr.EINTR
}

func readSigset(ctx *Context, userVA pagedir.VPN) (signal.Set, error) {
	buf := make([]byte, 8)
	if err := usercopy.CopyFromUser(ctx.Space, userVA, buf); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[i]) << (8 * i)
	}
	return signal.Set(v), nil
}

func writeSigset(ctx *Context, userVA pagedir.VPN, s signal.Set) error {
	buf := make([]byte, 8)
	putU64(buf, uint64(s))
	return usercopy.CopyToUser(ctx.Space, userVA, buf)
}

// sysRtSigprocmask implements rt_sigprocmask(how, set, oldset), per
// spec.md §6.
func sysRtSigprocmask(ctx *Context, args [6]int64) (int64, error) {
	how := int(args[0])
	userSet, userOld := pagedir.VPN(args[1]), pagedir.VPN(args[2])

	if userOld != 0 {
		if err := writeSigset(ctx, userOld, ctx.Task.Sig.Blocked); err != nil {
			return 0, err
		}
	}
	if userSet == 0 {
		return 0, nil
	}
	set, err := readSigset(ctx, userSet)
	if err != nil {
		return 0, err
	}
	switch how {
	case SigBlock:
		ctx.Task.Sig.Blocked |= set
	case SigUnblock:
		ctx.Task.Sig.Blocked &^= set
	case SigSetmask:
		ctx.Task.Sig.Blocked = set
	default:
		return 0, kerr.EINVAL
	}
	return 0, nil
}

// sysRtSigreturn unwinds the mask bracket a handler delivery installed,
// the syscall a real trampoline issues after a signal handler returns.
func sysRtSigreturn(ctx *Context, args [6]int64) (int64, error) {
	ctx.Task.Sig.Sigreturn()
	return 0, nil
}

// sysRtSigsuspend implements rt_sigsuspend(mask): temporarily install
// mask, block for exactly one deliverable signal the way pause() does,
// then restore the previous mask and return -EINTR, per spec.md §6.
func sysRtSigsuspend(ctx *Context, args [6]int64) (int64, error) {
	userMask := pagedir.VPN(args[0])
	mask, err := readSigset(ctx, userMask)
	if err != nil {
		return 0, err
	}
	old := ctx.Task.Sig.Blocked
	ctx.Task.Sig.Blocked = mask
	sig := ctx.Task.Sig.WaitPending()
	deliverSignal(ctx, sig)
	ctx.Task.Sig.Blocked = old
	return -1, kerr.EINTR
}
