package vfs

import "sync"

// Inode is the in-memory node a FS resolves a path component to: the unit
// of reference counting, locking, and identity shared by every Handle
// opened against the same file, per spec.md §3/§4.8.
type Inode struct {
	FS   FS
	Ino  uint64
	Type EntryType

	mu       sync.RWMutex // "rwlock" of spec.md §4.8: shared for readers, exclusive for writers
	refCount int32
}

// Lock acquires the inode's rwlock, shared or exclusive per spec.md §4.8's
// resolve() contract ("the last component's inode is locked exclusive when
// the caller intends to write").
func (n *Inode) Lock(exclusive bool) {
	if exclusive {
		n.mu.Lock()
	} else {
		n.mu.RLock()
	}
}

// Unlock releases the lock taken by the matching Lock call.
func (n *Inode) Unlock(exclusive bool) {
	if exclusive {
		n.mu.Unlock()
	} else {
		n.mu.RUnlock()
	}
}

// Retain bumps the inode's reference count, mirroring spec.md §4.8's
// "get_entry retains, release_entry drops" contract.
func (n *Inode) Retain() { n.FS.RetainInode(n) }

// Release drops the inode's reference count.
func (n *Inode) Release() { n.FS.ReleaseInode(n) }

// FS is the pluggable filesystem contract every mounted filesystem
// implements, per spec.md §4.8/§4.9. A FS owns its own inode table and
// whole-filesystem lock; the VFS layer above only ever calls through this
// interface and never reaches into filesystem-private state.
type FS interface {
	// Name identifies the filesystem type, e.g. "ramfs", "devfs".
	Name() string

	// GetEntry resolves one path component under dir, returning its Inode.
	// The returned inode has already been Retain()'d.
	GetEntry(dir *Inode, name string) (*Inode, error)

	// RetainInode/ReleaseInode implement the inode refcount spec.md §4.8
	// requires GetEntry/Handle.Close to drive.
	RetainInode(n *Inode)
	ReleaseInode(n *Inode)

	// Root returns the filesystem's root inode, already retained.
	Root() *Inode

	Open(n *Inode, flags OpenFlags) (Handle, error)
	Stat(n *Inode) (Stat, error)
	Truncate(n *Inode, size int64) error
	Chmod(n *Inode, mode uint32) error

	Create(dir *Inode, name string, mode uint32) (*Inode, error)
	Mkdir(dir *Inode, name string, mode uint32) error
	Rmdir(dir *Inode, name string) error
	Unlink(dir *Inode, name string) error
	Rename(oldDir *Inode, oldName string, newDir *Inode, newName string) error
	Link(dir *Inode, name string, target *Inode) error
	Symlink(dir *Inode, name string, target string) error
	Readlink(n *Inode) (string, error)

	// ExLock/ExUnlock and ShLock/ShUnlock implement the whole-filesystem
	// lock spec.md §4.8 requires rename()/unlink() to take exclusive and
	// lookups to take shared, serializing structural changes against
	// concurrent tree walks within one filesystem instance.
	ExLock()
	ExUnlock()
	ShLock()
	ShUnlock()

	// Unmount flushes and releases resources; returns EBUSY if inodes are
	// still referenced, per spec.md §4.8.
	Unmount() error
}
