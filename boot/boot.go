// Package boot sequences the kernel's subsystem bring-up, the way
// rclone's `cmd.Root`/`fs.Config` bring-up wires config, cache, and
// backends together before any command runs. Kernel() assembles every
// package built under spec.md into one running Kernel value; Kernel.Run
// drives the scheduler/timer-wheel tick loop an init process needs to
// make progress.
package boot

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tilck-go/tilck/irq"
	"github.com/tilck-go/tilck/kconfig"
	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/klog"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/mm/physalloc"
	"github.com/tilck-go/tilck/process"
	"github.com/tilck-go/tilck/sched/scheduler"
	"github.com/tilck-go/tilck/sched/timerwheel"
	"github.com/tilck-go/tilck/syscalls"
	"github.com/tilck-go/tilck/tracing"
	"github.com/tilck-go/tilck/tty"
	"github.com/tilck-go/tilck/vfs"
	"github.com/tilck-go/tilck/vfs/devfs"
	"github.com/tilck-go/tilck/vfs/ramfs"
)

// framesPerMB is PageSize-relative: how many 4 KiB frames make up one MiB.
const framesPerMB = (1 << 20) / physalloc.PageSize

// Kernel bundles every subsystem a running instance needs, the single
// value cmd/tilckd and cmd/devshell build once at startup and then drive.
type Kernel struct {
	Config kconfig.Config

	// BootID uniquely identifies this boot instance. It is written into the
	// message of the "boot" trace event Boot emits, so logs from concurrent
	// test kernels (or successive restarts in the same process) can be told
	// apart; later trace events do not carry it.
	BootID string

	Alloc *physalloc.Allocator
	Mem   *physalloc.Memory

	Mount *vfs.MountTable
	Procs *process.Manager
	Sched *scheduler.Scheduler
	Timer *timerwheel.Wheel
	IRQ   *irq.Dispatcher
	Sys   *syscalls.Table
	Trace *tracing.Buffer
	TTY   *tty.Console

	Root *syscalls.Context
}

// Boot brings up a fresh kernel instance from cfg: physical memory, the
// root ramfs mounted at "/" with devfs mounted at "/dev", the scheduler
// and timer wheel, the syscall table, and the init (PID 1) process/task
// pair, mirroring spec.md §3's boot sequence.
func Boot(cfg kconfig.Config) (*Kernel, error) {
	if cfg.Debug {
		klog.SetLevel(logrus.DebugLevel)
	} else if cfg.Quiet {
		klog.SetLevel(logrus.ErrorLevel)
	}

	k := &Kernel{Config: cfg, BootID: uuid.NewString()}

	k.Alloc = physalloc.New(0, cfg.PhysMemMB*framesPerMB)
	k.Mem = physalloc.NewMemory()

	k.Mount = vfs.NewMountTable()
	if cfg.RootFS != "ramfs" {
		return nil, fmt.Errorf("boot: unsupported root filesystem %q", cfg.RootFS)
	}
	root := ramfs.New()
	if err := k.Mount.Mount("/", root, vfs.ReadWrite); err != nil {
		return nil, kerr.Wrap(err, "boot: mounting root fs")
	}
	if err := k.Mount.Mount("/dev", devfs.New(), vfs.ReadWrite); err != nil {
		return nil, kerr.Wrap(err, "boot: mounting devfs")
	}

	k.Procs = process.NewManager(k.Alloc, k.Mem)
	k.Sched = scheduler.New()
	k.Timer = timerwheel.New()
	k.IRQ = irq.NewDispatcher(&irq.Stack{})
	k.Sys = syscalls.NewTable()
	k.Trace = tracing.New(cfg.TraceBuffer)
	k.TTY = tty.NewConsole()

	mode := pagedir.ForkCoW
	if cfg.ForkNoCoW {
		mode = pagedir.ForkEager
	}
	initProc := k.Procs.Init(mode)
	initProc.SetCwd("/")
	initTask, _ := k.Procs.Task(initProc.PID)
	k.Sched.Enqueue(initTask)

	k.Root = &syscalls.Context{
		Task:     initTask,
		Proc:     initProc,
		Mount:    k.Mount,
		Procs:    k.Procs,
		Alloc:    k.Alloc,
		Mem:      k.Mem,
		KernHalf: pagedir.NewKernelHalf(),
	}

	k.Trace.Emit("boot", fmt.Sprintf("kernel %s initialized, init process running as PID %d", k.BootID, initProc.PID), initProc.PID)
	return k, nil
}

// Tick advances the timer wheel and process manager clock by one
// quantum, waking any timers whose deadline has elapsed and firing their
// waiters, and expires the current task's scheduler quantum.
func (k *Kernel) Tick() {
	k.Procs.Tick()
	k.Timer.Tick()
	k.Sched.Tick()
}

// Run drives n ticks of the kernel's scheduler/timer loop under an
// errgroup so a panicking tick surfaces as an error rather than silently
// wedging the run, the way rclone's sync commands fan work out under
// errgroup.Group.
func (k *Kernel) Run(ctx context.Context, ticks int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < ticks; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			k.Tick()
		}
		return nil
	})
	return g.Wait()
}
