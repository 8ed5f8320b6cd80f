package kerr

import "github.com/pkg/errors"

// Wrap attaches a stack trace and context message to err, for internal
// diagnostics only — never call this on the value returned across a
// syscall boundary, which must be a bare Errno (see syscalls.Table).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Cause unwraps err to the deepest underlying cause, same convention the
// teacher repo uses throughout fs/fserrors.
func Cause(err error) error {
	return errors.Cause(err)
}
