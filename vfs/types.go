// Package vfs implements the kernel's Virtual File System layer: path
// resolution, the mount-point tree, file-handle lifecycle, and per-fs /
// per-file locking, per spec.md §4.8. Concrete filesystems (vfs/ramfs,
// vfs/devfs) implement the FS interface defined here.
package vfs

import "time"

// EntryType is the node kind a VFS path can resolve to, per spec.md §3.
type EntryType int

const (
	TypeNone EntryType = iota
	TypeFile
	TypeDir
	TypeSymlink
	TypeCharDev
	TypeBlockDev
	TypePipe
)

// FSFlags are the mount-time flags of spec.md §3 ("Filesystem instance").
type FSFlags uint32

const (
	ReadOnly FSFlags = 1 << iota
	ReadWrite
)

// Stat mirrors the fields spec.md §6 requires for stat64/lstat64/fstat64.
type Stat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32 // POSIX permission bits | type bits
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint64
	Size    int64
	BlkSize int64
	Blocks  int64
	Ctim    time.Time
	Mtim    time.Time
	Atim    time.Time
}

// DirEntry is one record of a getdents64 result, per spec.md §6
// (linux_dirent64: d_ino, d_off, d_reclen, d_type, d_name).
type DirEntry struct {
	Ino    uint64
	Off    int64
	Type   EntryType
	Name   string
}

// Open flags, aliased to the real Linux O_* bit values via golang.org/x/sys
// would be ideal, but the numeric values differ across OSes for a few of
// these; the kernel's own ABI is authoritative here, so we define the bits
// spec.md §6 names directly.
type OpenFlags uint32

const (
	ORdonly   OpenFlags = 0x0000
	OWronly   OpenFlags = 0x0001
	ORdwr     OpenFlags = 0x0002
	OCreat    OpenFlags = 0x0040
	OExcl     OpenFlags = 0x0080
	OTrunc    OpenFlags = 0x0200
	OAppend   OpenFlags = 0x0400
	ONonblock OpenFlags = 0x0800
	OCloexec  OpenFlags = 0x80000
)

func (f OpenFlags) AccMode() OpenFlags { return f & ORdwr }
func (f OpenFlags) Has(bit OpenFlags) bool { return f&bit != 0 }
