// Package task defines the Task and Process data model of spec.md §3: the
// scheduling unit and the address-space/resource owner it belongs to.
// It depends on signal and vfs but neither of those import task, keeping
// the dependency graph acyclic.
package task

import (
	"sync"
	"sync/atomic"

	"github.com/tilck-go/tilck/klog"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/mm/physalloc"
	"github.com/tilck-go/tilck/signal"
	"github.com/tilck-go/tilck/vfs"
)

// State is a task's scheduling state, per spec.md §3.
type State int

const (
	Runnable State = iota
	Running
	Sleeping
	Zombie
	Stopped
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Zombie:
		return "zombie"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var nextPID int64 = 0

// AllocPID returns the next unused PID/TID, per spec.md §4.1's
// monotonically increasing allocator (wraps are out of scope at the scale
// this kernel targets).
func AllocPID() int64 {
	return atomic.AddInt64(&nextPID, 1)
}

// Process is the resource-owning unit fork() creates and execve()
// transforms in place: address space, fd table, and cwd, per spec.md §3.
type Process struct {
	PID     int64
	PageDir *pagedir.PageDir
	FDs     *vfs.FDTable

	alloc *physalloc.Allocator
	mem   *physalloc.Memory

	mu  sync.Mutex
	Cwd string

	ExitCode int
	Exited   bool

	parent   *Process
	children []*Process
}

// NewProcess creates a fresh process with its own page directory and empty
// fd table (used only for PID 1 / kernel bootstrap; every other process
// comes from Fork). alloc and mem back every address space descended from
// this process; kh is the kernel half every PageDir in the system shares.
func NewProcess(alloc *physalloc.Allocator, mem *physalloc.Memory, kh pagedir.KernelHalf, mode pagedir.ForkMode) *Process {
	return &Process{
		PID:     AllocPID(),
		PageDir: pagedir.New(alloc, kh, mode),
		FDs:     vfs.NewFDTable(),
		alloc:   alloc,
		mem:     mem,
		Cwd:     "/",
	}
}

// Fork creates a child process per spec.md §4.11: the process's page
// directory's own ForkMode selects copy-on-write vs. eager duplication
// (FORK_NO_COW), the fd table is duplicated via dup-semantics, and the
// child is linked into the parent's child list for wait4()/waitpid().
func (p *Process) Fork() (*Process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pd := p.PageDir.CloneForFork(
		func() (physalloc.Frame, bool) { return p.alloc.AllocFrame() },
		p.mem.CopyPage,
	)
	fds, err := p.FDs.Fork()
	if err != nil {
		pd.Destroy(p.alloc.FreeFrame)
		return nil, err
	}
	child := &Process{
		PID:     AllocPID(),
		PageDir: pd,
		FDs:     fds,
		alloc:   p.alloc,
		mem:     p.mem,
		Cwd:     p.Cwd,
		parent:  p,
	}
	p.children = append(p.children, child)
	return child, nil
}

// SetCwd updates the process's current working directory.
func (p *Process) SetCwd(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Cwd = path
}

// GetCwd returns the process's current working directory.
func (p *Process) GetCwd() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Cwd
}

// Children returns a snapshot of the process's live children, for
// wait4()/waitpid().
func (p *Process) Children() []*Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Process, len(p.children))
	copy(out, p.children)
	return out
}

// Exit marks the process a zombie with the given exit code, per spec.md
// §4.11: resources are released, but the PID/exit-code slot survives until
// a wait4()/waitpid() reaps it.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Exited = true
	p.ExitCode = code
	p.PageDir.Destroy(p.alloc.FreeFrame)
	if err := p.FDs.CloseAll(); err != nil {
		klog.Errorf("task", "pid %d: closing fds at exit: %v", p.PID, err)
	}
}

// Reap removes child from p's child list after its exit status has been
// collected, per spec.md §4.11.
func (p *Process) Reap(child *Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.children {
		if c == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// Task is the unit the scheduler runs, per spec.md §3: one thread of
// execution within a Process, carrying its own signal frame and
// scheduling state (POSIX threads share a Process; this kernel's only
// exercised shape is one Task per Process, matching Tilck's model where
// "tid == pid" for the main thread).
type Task struct {
	TID   int64
	Proc  *Process
	State State
	Sig   signal.Frame

	Priority int
	TicksLeft int

	ExitStatus int
}

// NewTask creates the main task of a fresh process.
func NewTask(p *Process) *Task {
	return &Task{
		TID:   p.PID,
		Proc:  p,
		State: Runnable,
		Sig:   signal.NewFrame(),
	}
}
