// Package process implements the task-lifecycle syscalls of spec.md
// §4.11: fork, vfork, execve, exit, and wait4/waitpid. It sits above
// sched/task, vfs, and signal, wiring them into the operations a real
// process-management syscall layer exposes.
package process

import (
	"sync"
	"sync/atomic"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/kmalloc"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/mm/physalloc"
	"github.com/tilck-go/tilck/sched/task"
	"github.com/tilck-go/tilck/signal"
	"github.com/tilck-go/tilck/vfs"
)

// kernelStackSize is how much of the kernel heap each task's simulated
// kernel stack occupies, one page per task per spec.md §4.3's "each task
// gets a small, fixed-size kernel stack allocated from the kernel heap".
const kernelStackSize = physalloc.PageSize

// kstackHeapSize is the whole kernel-stack sub-heap's nominal size: room
// for plenty of concurrently-live tasks without exhausting it in tests
// that fork many children from a small physical memory budget.
const kstackHeapSize = 1 << 20

// Manager owns the global process table and the shared kernel resources
// every address space is built from, per spec.md §3.
type Manager struct {
	alloc *physalloc.Allocator
	mem   *physalloc.Memory
	kh    pagedir.KernelHalf

	// kstacks is the buddy-allocated kernel heap each task's simulated
	// kernel stack is carved from; kstackFrames tracks which physical
	// frames back a given stack's vaddr so FreeBlock can return them to
	// alloc (the Hooks callback only gets a vaddr/size pair, not the
	// frames kmalloc chose for it).
	kstacks      *kmalloc.Engine
	kstackFrames map[uintptr][]physalloc.Frame
	taskStacks   map[int64]uintptr

	mu    sync.Mutex
	table map[int64]*task.Process
	tasks map[int64]*task.Task

	// waitSubs maps a parent PID to condition-style channels woken each
	// time one of its children changes zombie state, the primitive
	// wait4()/waitpid() block on.
	waitSubs map[int64][]chan struct{}

	clock int64
}

// Tick advances the manager's wall-clock stand-in by one second, driven by
// boot's scheduler tick loop.
func (m *Manager) Tick() { atomic.AddInt64(&m.clock, 1) }

// Clock returns the manager's simulated Unix timestamp, seeded at 0 at
// boot; gettimeofday() surfaces this rather than the host's real clock so
// test runs stay deterministic.
func (m *Manager) Clock() int64 { return atomic.LoadInt64(&m.clock) }

// NewManager creates a process manager backed by alloc/mem for every
// address space it creates.
func NewManager(alloc *physalloc.Allocator, mem *physalloc.Memory) *Manager {
	m := &Manager{
		alloc:        alloc,
		mem:          mem,
		kh:           pagedir.NewKernelHalf(),
		kstackFrames: make(map[uintptr][]physalloc.Frame),
		taskStacks:   make(map[int64]uintptr),
		table:        make(map[int64]*task.Process),
		tasks:        make(map[int64]*task.Task),
		waitSubs:     make(map[int64][]chan struct{}),
	}

	heap := kmalloc.NewHeap(0, kstackHeapSize, kernelStackSize, kernelStackSize, kmalloc.AllowSplit, kmalloc.Hooks{
		AllocBlock: func(vaddr uintptr, size uint) bool {
			frames := make([]physalloc.Frame, 0, size/physalloc.PageSize)
			for done := uint(0); done < size; done += physalloc.PageSize {
				f, ok := alloc.AllocFrame()
				if !ok {
					for _, got := range frames {
						alloc.FreeFrame(got)
					}
					return false
				}
				frames = append(frames, f)
			}
			m.mu.Lock()
			m.kstackFrames[vaddr] = frames
			m.mu.Unlock()
			return true
		},
		FreeBlock: func(vaddr uintptr, size uint) {
			m.mu.Lock()
			frames := m.kstackFrames[vaddr]
			delete(m.kstackFrames, vaddr)
			m.mu.Unlock()
			for _, f := range frames {
				alloc.FreeFrame(f)
			}
		},
	})
	m.kstacks = kmalloc.NewEngine(heap)
	return m
}

// allocKernelStack reserves one kernelStackSize block from the kernel
// stack heap for pid's task, recording the mapping so freeKernelStack can
// free the right block later.
func (m *Manager) allocKernelStack(pid int64) {
	vaddr, ok := m.kstacks.Kmalloc(kernelStackSize)
	if !ok {
		kerr.Assert(false, "process: kernel stack heap exhausted")
	}
	m.mu.Lock()
	m.taskStacks[pid] = vaddr
	m.mu.Unlock()
}

// freeKernelStack releases pid's kernel stack block, called once its
// process has been reaped by Wait4.
func (m *Manager) freeKernelStack(pid int64) {
	m.mu.Lock()
	vaddr, ok := m.taskStacks[pid]
	delete(m.taskStacks, pid)
	m.mu.Unlock()
	if ok {
		m.kstacks.Kfree(vaddr)
	}
}

// Init creates the first process (PID 1), the root of every future fork
// tree, per spec.md §4.11.
func (m *Manager) Init(mode pagedir.ForkMode) *task.Process {
	p := task.NewProcess(m.alloc, m.mem, m.kh, mode)
	tsk := task.NewTask(p)
	m.allocKernelStack(p.PID)
	m.mu.Lock()
	m.table[p.PID] = p
	m.tasks[p.PID] = tsk
	m.mu.Unlock()
	return p
}

// Task returns the main task registered under pid, if any — this
// substrate keeps exactly one task per process (see DESIGN.md), so a
// process's PID and its single task's TID are always equal.
func (m *Manager) Task(pid int64) (*task.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[pid]
	return t, ok
}

// Fork creates a child of parent, copying its address space per the
// child's inherited ForkMode (CoW unless the process tree was started
// with FORK_NO_COW), per spec.md §4.11's Scenario S4.
func (m *Manager) Fork(parent *task.Process) (*task.Process, error) {
	child, err := parent.Fork()
	if err != nil {
		return nil, err
	}
	tsk := task.NewTask(child)
	m.allocKernelStack(child.PID)
	m.mu.Lock()
	m.table[child.PID] = child
	m.tasks[child.PID] = tsk
	m.mu.Unlock()
	return child, nil
}

// Vfork creates a child that shares the parent's address space directly
// (no copy at all, not even CoW) until the child calls Execve or Exit, per
// spec.md §4.11's vfork() semantics. The parent is suspended by the
// caller (not this package — Manager has no scheduler dependency) for the
// duration.
func (m *Manager) Vfork(parent *task.Process) (*task.Process, error) {
	fds, err := parent.FDs.Fork()
	if err != nil {
		return nil, err
	}
	child := &task.Process{
		PID:     task.AllocPID(),
		PageDir: parent.PageDir, // shared, not cloned
		FDs:     fds,
		Cwd:     parent.GetCwd(),
	}
	tsk := task.NewTask(child)
	m.allocKernelStack(child.PID)
	m.mu.Lock()
	m.table[child.PID] = child
	m.tasks[child.PID] = tsk
	m.mu.Unlock()
	return child, nil
}

// Execve replaces t's signal dispositions (per POSIX: pending signals and
// the blocked mask survive execve, handlers reset to default) and closes
// every CLOEXEC fd, per spec.md §4.11. It does not itself load a binary
// image — that is syscalls' concern — only the process-state transition.
func (m *Manager) Execve(t *task.Task) {
	t.Sig.ResetToDefaults()
	t.Proc.FDs.CloseOnExec()
}

// Exit marks p a zombie with the given status and wakes anyone blocked in
// wait4()/waitpid() on its parent, per spec.md §4.11.
func (m *Manager) Exit(p *task.Process, parentPID int64, status int) {
	m.mu.Lock()
	p.Exit(status)
	subs := m.waitSubs[parentPID]
	delete(m.waitSubs, parentPID)
	m.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

// Wait4 blocks parent until one of its children is a zombie, then reaps
// it and returns its PID and exit status, per spec.md §4.11. done, if
// non-nil, aborts the wait with EINTR (a pending signal interrupting the
// syscall).
func (m *Manager) Wait4(parent *task.Process, done <-chan struct{}) (pid int64, status int, err error) {
	for {
		// The zombie scan and the waitSubs subscribe must happen under one
		// continuous m.mu section: otherwise a child's Exit can complete its
		// mark-exited-then-close-subs sequence in the gap between the two,
		// and this call would subscribe to a wakeup that already fired.
		m.mu.Lock()
		children := parent.Children()
		if len(children) == 0 {
			m.mu.Unlock()
			return 0, 0, kerr.ECHILD
		}
		var zombie *task.Process
		for _, c := range children {
			if c.Exited {
				zombie = c
				break
			}
		}
		if zombie != nil {
			parent.Reap(zombie)
			delete(m.table, zombie.PID)
			delete(m.tasks, zombie.PID)
			m.mu.Unlock()
			m.freeKernelStack(zombie.PID)
			return zombie.PID, zombie.ExitCode, nil
		}

		ch := make(chan struct{})
		m.waitSubs[parent.PID] = append(m.waitSubs[parent.PID], ch)
		m.mu.Unlock()

		select {
		case <-ch:
		case <-done:
			return 0, 0, kerr.EINTR
		}
	}
}

// Get returns the process registered under pid, if any.
func (m *Manager) Get(pid int64) (*task.Process, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.table[pid]
	return p, ok
}

// Kill raises sig against target, per spec.md §4.7/§4.11's kill()
// surface.
func Kill(target *task.Task, sig int) error {
	if sig < 1 || sig > signal.NSIG {
		return kerr.EINVAL
	}
	target.Sig.Raise(sig)
	return nil
}

// ResolveExecPath resolves path (relative to cwd when it doesn't start
// with "/") to the inode execve() should load, per spec.md §4.11.
func ResolveExecPath(mnt *vfs.MountTable, cwd, path string) (*vfs.ResolvedPath, error) {
	if len(path) == 0 || path[0] != '/' {
		path = cwd + "/" + path
	}
	return vfs.Resolve(mnt, path, false, true)
}
