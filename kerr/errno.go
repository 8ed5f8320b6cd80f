// Package kerr defines the errno taxonomy used at every syscall boundary in
// the kernel substrate, plus the wrapping conventions used internally.
package kerr

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Errno is a Linux-compatible negative-errno error, returned verbatim by
// syscalls.Table handlers. Its numeric value matches the real Linux ABI so
// that cmd/devshell programs can compare against it the way a real libc
// would.
type Errno int

// Error implements the error interface.
func (e Errno) Error() string {
	return unix.Errno(e).Error()
}

// Negated returns the syscall return value a handler should hand back:
// -errno, as spec.md §7 requires ("syscalls return negative errno on
// failure").
func (e Errno) Negated() int64 {
	return -int64(e)
}

// The errno taxonomy named in spec.md §7, aliased onto the real Linux
// values from golang.org/x/sys/unix so downstream code never has to
// hand-maintain magic numbers.
const (
	ENOMEM       = Errno(unix.ENOMEM)
	EINVAL       = Errno(unix.EINVAL)
	EBADF        = Errno(unix.EBADF)
	EEXIST       = Errno(unix.EEXIST)
	ENOENT       = Errno(unix.ENOENT)
	ENOTDIR      = Errno(unix.ENOTDIR)
	EISDIR       = Errno(unix.EISDIR)
	ENOTEMPTY    = Errno(unix.ENOTEMPTY)
	EFAULT       = Errno(unix.EFAULT)
	EAGAIN       = Errno(unix.EAGAIN)
	EINTR        = Errno(unix.EINTR)
	EMFILE       = Errno(unix.EMFILE)
	E2BIG        = Errno(unix.E2BIG)
	ENAMETOOLONG = Errno(unix.ENAMETOOLONG)
	ELOOP        = Errno(unix.ELOOP)
	ENOEXEC      = Errno(unix.ENOEXEC)
	ENOSYS       = Errno(unix.ENOSYS)
	EPIPE        = Errno(unix.EPIPE)
	ESPIPE       = Errno(unix.ESPIPE)
	EROFS        = Errno(unix.EROFS)
	EIO          = Errno(unix.EIO)
	EPROTOTYPE   = Errno(unix.EPROTOTYPE)
	EPERM        = Errno(unix.EPERM)
	ECHILD       = Errno(unix.ECHILD)
	ENOTTY       = Errno(unix.ENOTTY)
	EXDEV        = Errno(unix.EXDEV)
	ESRCH        = Errno(unix.ESRCH)
	EBUSY        = Errno(unix.EBUSY)
	ENODEV       = Errno(unix.ENODEV)
	ENXIO        = Errno(unix.ENXIO)
	ERANGE       = Errno(unix.ERANGE)
)

// FromSyscallError peels an Errno back out of a wrapped error, defaulting to
// EIO when the cause isn't one of ours — a syscall handler must never leak
// a bare Go error across the kernel boundary.
func FromSyscallError(err error) Errno {
	if err == nil {
		return 0
	}
	if e, ok := Cause(err).(Errno); ok {
		return e
	}
	return EIO
}

// mustErrno is a programmer-error assertion, used at the few spots spec.md
// calls out as "a bug" (double-free, unlock by non-owner, ...).
func mustErrno(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Assert panics with a formatted message when cond is false. Exported so
// other kernel packages can share the same "this is a programmer error, not
// a recoverable condition" idiom spec.md §7 calls for (double-free,
// unlock-by-non-owner, allocator corruption).
func Assert(cond bool, format string, args ...interface{}) {
	mustErrno(cond, format, args...)
}
