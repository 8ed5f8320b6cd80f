// Package signal implements the per-task pending/blocked signal state and
// delivery logic of spec.md §4.7. It has no dependency on sched/task so
// that task.Task can embed a Frame without an import cycle.
package signal

import (
	"golang.org/x/sys/unix"

	"github.com/tilck-go/tilck/sched/waitobj"
)

// NSIG is the number of signals tracked, matching Linux's NSIG (1..64,
// slot 0 unused).
const NSIG = 64

// Common signal numbers this repo's syscall surface and devshell demos
// actually raise/catch, aliased from golang.org/x/sys/unix for ABI-exact
// values.
const (
	SIGHUP  = int(unix.SIGHUP)
	SIGINT  = int(unix.SIGINT)
	SIGQUIT = int(unix.SIGQUIT)
	SIGILL  = int(unix.SIGILL)
	SIGTRAP = int(unix.SIGTRAP)
	SIGABRT = int(unix.SIGABRT)
	SIGBUS  = int(unix.SIGBUS)
	SIGFPE  = int(unix.SIGFPE)
	SIGKILL = int(unix.SIGKILL)
	SIGUSR1 = int(unix.SIGUSR1)
	SIGSEGV = int(unix.SIGSEGV)
	SIGUSR2 = int(unix.SIGUSR2)
	SIGPIPE = int(unix.SIGPIPE)
	SIGALRM = int(unix.SIGALRM)
	SIGTERM = int(unix.SIGTERM)
	SIGCHLD = int(unix.SIGCHLD)
	SIGCONT = int(unix.SIGCONT)
	SIGSTOP = int(unix.SIGSTOP)
)

// Disposition is what a task does when a signal is deliverable.
type Disposition int

const (
	Default Disposition = iota
	Ignore
	Custom
)

// HandlerFlags mirror the rt_sigaction SA_* flags this repo supports.
type HandlerFlags uint32

const (
	SANodefer HandlerFlags = 1 << iota
	SARestart
	SASiginfo
)

// Handler describes one signal's disposition.
type Handler struct {
	Disposition Disposition
	Fn          uintptr // user-space handler address, meaningful only when Disposition == Custom
	Mask        Set     // additional signals blocked while the handler runs
	Flags       HandlerFlags
}

// Set is a NSIG-wide signal bitset.
type Set uint64

func (s Set) Has(sig int) bool   { return s&(1<<uint(sig-1)) != 0 }
func (s *Set) Add(sig int)       { *s |= 1 << uint(sig-1) }
func (s *Set) Remove(sig int)    { *s &^= 1 << uint(sig-1) }
func (s Set) IsEmpty() bool      { return s == 0 }

// terminatingDefaults are the signals whose Default disposition kills the
// process (everything else's default is Ignore), per POSIX and spec.md
// §4.7.
var terminatingDefaults = Set(0).
	adding(SIGHUP, SIGINT, SIGQUIT, SIGILL, SIGTRAP, SIGABRT, SIGBUS, SIGFPE,
		SIGKILL, SIGUSR1, SIGSEGV, SIGUSR2, SIGPIPE, SIGALRM, SIGTERM)

func (s Set) adding(sigs ...int) Set {
	for _, sig := range sigs {
		s.Add(sig)
	}
	return s
}

// DefaultIsTerminating reports whether sig's default disposition
// terminates the process.
func DefaultIsTerminating(sig int) bool {
	return terminatingDefaults.Has(sig)
}

// Uncatchable reports whether sig can never be blocked or caught
// (SIGKILL, SIGSTOP), per spec.md §4.7.
func Uncatchable(sig int) bool {
	return sig == SIGKILL || sig == SIGSTOP
}

// Frame is the per-task signal state spec.md §3 names: pending, blocked,
// handlers, nested_level, in_sigsuspend, old_blocked.
type Frame struct {
	Pending      Set
	Blocked      Set
	Handlers     [NSIG + 1]Handler
	NestedLevel  int
	InSigsuspend bool
	OldBlocked   Set
	SavedMask    Set // unused: Sigreturn restores OldBlocked

	// wake is signaled every time Raise adds a new pending bit, the
	// primitive pause()/sigsuspend() block on instead of polling Pending.
	wake *waitobj.WaitObj
}

// NewFrame returns a frame with every signal at its default disposition.
func NewFrame() Frame {
	return Frame{wake: waitobj.New(waitobj.TypeKcond)}
}

// Raise sets sig pending and wakes any task blocked in WaitPending, per
// kill()/tkill() semantics. Returns false if sig is out of range.
func (f *Frame) Raise(sig int) bool {
	if sig < 1 || sig > NSIG {
		return false
	}
	f.Pending.Add(sig)
	if f.wake != nil {
		f.wake.Signal()
	}
	return true
}

// WaitPending blocks the calling goroutine until a deliverable signal is
// pending, the state machine pause()/sigsuspend() are built on (spec.md
// §6). It does not consume the signal or run its disposition — the
// caller (syscalls' deliverSignal) does that, since running the default
// disposition may need to terminate the process, which this package has
// no access to.
func (f *Frame) WaitPending() int {
	for {
		if sig := f.Deliverable(); sig != 0 {
			return sig
		}
		waitobj.NewMultiWaiter(f.wake).WaitAny(nil)
		f.wake.Reset()
	}
}

// Deliverable returns the lowest-numbered pending, unblocked signal that
// is not Ignore-disposed, or 0 if none, per spec.md §4.7's delivery rule.
func (f *Frame) Deliverable() int {
	for sig := 1; sig <= NSIG; sig++ {
		if !f.Pending.Has(sig) {
			continue
		}
		if f.Blocked.Has(sig) && !Uncatchable(sig) {
			continue
		}
		h := f.Handlers[sig]
		if h.Disposition == Ignore {
			continue
		}
		return sig
	}
	return 0
}

// Consume clears sig from pending, called once delivery (or the
// terminating default) has been applied.
func (f *Frame) Consume(sig int) {
	f.Pending.Remove(sig)
}

// EnterHandler computes the mask to install while a Custom handler for sig
// runs: handler.Mask, plus sig itself unless SA_NODEFER, per spec.md §4.7.
func (f *Frame) EnterHandler(sig int) Set {
	h := f.Handlers[sig]
	mask := f.Blocked | h.Mask
	if h.Flags&SANodefer == 0 {
		mask.Add(sig)
	}
	f.OldBlocked = f.Blocked
	f.Blocked = mask
	f.NestedLevel++
	return mask
}

// Sigreturn restores the mask saved by the most recent EnterHandler.
func (f *Frame) Sigreturn() {
	if f.NestedLevel > 0 {
		f.Blocked = f.OldBlocked
		f.NestedLevel--
	}
}

// SetHandler installs a handler for sig, rejecting SIGKILL/SIGSTOP per
// spec.md §4.7.
func (f *Frame) SetHandler(sig int, h Handler) bool {
	if Uncatchable(sig) {
		return false
	}
	if sig < 1 || sig > NSIG {
		return false
	}
	f.Handlers[sig] = h
	return true
}

// ResetToDefaults restores every handler to Default, as execve() does,
// while — per spec.md §4.11 — preserving the pending set and mask.
func (f *Frame) ResetToDefaults() {
	for i := range f.Handlers {
		f.Handlers[i] = Handler{}
	}
}
