package vfs

import (
	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/sched/waitobj"
)

// Handle is an open file description: the kernel object referenced by a
// process fd, shared across dup()'d fds and inherited across fork(), per
// spec.md §3/§4.8. Concrete handles (ramfs's fileHandle and dirHandle,
// devfs's device and directory handles, pipe handles) embed BaseHandle and
// override what they support.
//
// Modeled on rclone's vfs baseHandle: every method a handle doesn't support
// returns ENOSYS rather than requiring every implementer to stub it out.
type Handle interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Ioctl(cmd uintptr, arg uintptr) (uintptr, error)
	GetDents(entries []DirEntry) (int, error)
	Stat() (Stat, error)
	Close() error

	// Dup returns a new Handle carrying this one's open flags and current
	// file offset, for dup()/dup2()/fork().
	Dup() (Handle, error)

	ReadReady() bool
	WriteReady() bool
	ExceptReady() bool

	Flags() OpenFlags
	SetFlags(OpenFlags)

	// Node returns the backing Inode, for mmap() and fstat() to share
	// state across independently-opened handles of the same file.
	Node() *Inode
}

// Waitable is implemented by handles whose readiness can change after a
// poll() snapshot is taken — currently just pipes. sysPoll blocks on the
// real wait objects a Waitable handle exposes instead of a one-shot
// ReadReady()/WriteReady() snapshot taken at entry, so readiness that
// arrives while poll() is blocked still wakes it.
type Waitable interface {
	ReadWaitObj() *waitobj.WaitObj
	WriteWaitObj() *waitobj.WaitObj
}

// BaseHandle supplies ENOSYS-returning defaults for every Handle method.
// Concrete handles embed this and override only what they support.
type BaseHandle struct {
	flags OpenFlags
}

func (h *BaseHandle) Read(buf []byte) (int, error)                  { return 0, kerr.ENOSYS }
func (h *BaseHandle) Write(buf []byte) (int, error)                 { return 0, kerr.ENOSYS }
func (h *BaseHandle) Seek(offset int64, whence int) (int64, error)  { return 0, kerr.ESPIPE }
func (h *BaseHandle) Ioctl(cmd uintptr, arg uintptr) (uintptr, error) { return 0, kerr.ENOTTY }
func (h *BaseHandle) GetDents(entries []DirEntry) (int, error)      { return 0, kerr.ENOTDIR }
func (h *BaseHandle) Stat() (Stat, error)                           { return Stat{}, kerr.ENOSYS }
func (h *BaseHandle) Close() error                                  { return nil }
func (h *BaseHandle) Dup() (Handle, error)                          { return nil, kerr.ENOSYS }
func (h *BaseHandle) ReadReady() bool                               { return true }
func (h *BaseHandle) WriteReady() bool                              { return true }
func (h *BaseHandle) ExceptReady() bool                             { return false }
func (h *BaseHandle) Flags() OpenFlags                              { return h.flags }
func (h *BaseHandle) SetFlags(f OpenFlags)                          { h.flags = f }
func (h *BaseHandle) Node() *Inode                                  { return nil }
