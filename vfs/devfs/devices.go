package devfs

import (
	"github.com/tilck-go/tilck/vfs"
)

func init() {
	Register("null", newNullHandle)
	Register("zero", newZeroHandle)
}

type nullHandle struct{ vfs.BaseHandle }

func newNullHandle(flags vfs.OpenFlags) (vfs.Handle, error) {
	h := &nullHandle{}
	h.SetFlags(flags)
	return h, nil
}

func (h *nullHandle) Read(buf []byte) (int, error)  { return 0, nil }
func (h *nullHandle) Write(buf []byte) (int, error) { return len(buf), nil }
func (h *nullHandle) Dup() (vfs.Handle, error)       { return newNullHandle(h.Flags()) }

type zeroHandle struct{ vfs.BaseHandle }

func newZeroHandle(flags vfs.OpenFlags) (vfs.Handle, error) {
	h := &zeroHandle{}
	h.SetFlags(flags)
	return h, nil
}

func (h *zeroHandle) Read(buf []byte) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}
func (h *zeroHandle) Write(buf []byte) (int, error) { return len(buf), nil }
func (h *zeroHandle) Dup() (vfs.Handle, error)       { return newZeroHandle(h.Flags()) }
