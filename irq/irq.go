// Package irq models the kernel's interrupt/syscall entry path of
// spec.md §4.6: nested-interrupt accounting and the wrapper every syscall
// handler runs under to turn a panic or bad return into a proper -errno
// instead of crashing the simulated kernel.
package irq

import (
	"sync/atomic"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/klog"
)

// Stack tracks nested interrupt/syscall entry depth for one (simulated)
// CPU, per spec.md §4.6's invariant that nested IRQs are counted so the
// scheduler knows it is unsafe to context-switch while depth > 0.
type Stack struct {
	depth int32
}

// Enter increments the nesting depth, returning the depth after entry.
func (s *Stack) Enter() int32 { return atomic.AddInt32(&s.depth, 1) }

// Leave decrements the nesting depth, returning the depth after leaving.
// Leaving an already-zero stack is a programmer error, asserted per
// spec.md §4.6.
func (s *Stack) Leave() int32 {
	d := atomic.AddInt32(&s.depth, -1)
	kerr.Assert(d >= 0, "irq: Leave() on empty interrupt stack")
	return d
}

// Depth reports the current nesting depth.
func (s *Stack) Depth() int32 { return atomic.LoadInt32(&s.depth) }

// InIRQ reports whether the stack is currently inside any interrupt or
// syscall context.
func (s *Stack) InIRQ() bool { return s.Depth() > 0 }

// Handler is a dispatched IRQ line's service routine.
type Handler func()

// Dispatcher routes IRQ numbers to their registered handlers, per spec.md
// §4.6's IRQDispatch.
type Dispatcher struct {
	stack    *Stack
	handlers map[int][]Handler
}

// NewDispatcher returns a dispatcher sharing the given interrupt stack.
func NewDispatcher(stack *Stack) *Dispatcher {
	return &Dispatcher{stack: stack, handlers: make(map[int][]Handler)}
}

// Register adds h to the chain invoked when irqNum fires, per spec.md
// §4.6 ("multiple handlers may share one IRQ line").
func (d *Dispatcher) Register(irqNum int, h Handler) {
	d.handlers[irqNum] = append(d.handlers[irqNum], h)
}

// Dispatch runs every handler registered for irqNum inside one nested
// interrupt-stack entry.
func (d *Dispatcher) Dispatch(irqNum int) {
	d.stack.Enter()
	defer d.stack.Leave()
	for _, h := range d.handlers[irqNum] {
		h()
	}
}

// SyscallHandler is a syscall body, returning a value (or 0) and an error
// that becomes -errno on the wire, per spec.md §7.
type SyscallHandler func() (int64, error)

// SyscallEntry wraps a syscall handler the way a real kernel's trap gate
// does: it bumps the interrupt-nesting stack for the handler's duration,
// recovers from any internal panic (turning it into EIO rather than
// letting it escape into the caller), and returns the Linux ABI's
// negative-errno convention on failure, per spec.md §7.
func SyscallEntry(stack *Stack, name string, h SyscallHandler) (ret int64) {
	stack.Enter()
	defer stack.Leave()
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("irq", "syscall %s panicked: %v", name, r)
			ret = kerr.EIO.Negated()
		}
	}()

	val, err := h()
	if err != nil {
		klog.Debugf("irq", "%v", kerr.Wrapf(err, "syscall %s failed", name))
		return kerr.FromSyscallError(err).Negated()
	}
	return val
}
