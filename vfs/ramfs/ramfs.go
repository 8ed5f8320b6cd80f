// Package ramfs is an in-memory filesystem, the default root filesystem
// for cmd/devshell and the backing store for tmpfs-style mounts, per
// spec.md §4.9. It is grounded directly on rclone's backend/memory: a
// bucket-of-objects map protected by one RWMutex, here generalized to a
// tree of directories and files.
package ramfs

import (
	"sync"
	"time"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/vfs"
)

type node struct {
	inode    *vfs.Inode
	name     string
	mode     uint32
	children map[string]*node // nil for non-directories
	data     []byte
	target   string // symlink target
	refCount int32
	rdev     uint64

	mu sync.RWMutex
}

// FS is ramfs's vfs.FS implementation.
type FS struct {
	mu   sync.RWMutex // whole-filesystem lock, per spec.md §4.8
	root *node
	ino  uint64
}

// New returns an empty ramfs instance rooted at an empty directory.
func New() *FS {
	fs := &FS{}
	fs.root = fs.newNode("", vfs.TypeDir, 0755)
	return fs
}

func (fs *FS) newNode(name string, typ vfs.EntryType, mode uint32) *node {
	fs.ino++
	n := &node{name: name, mode: mode, refCount: 1}
	if typ == vfs.TypeDir {
		n.children = make(map[string]*node)
	}
	n.inode = &vfs.Inode{FS: fs, Ino: fs.ino, Type: typ}
	return n
}

func (fs *FS) Name() string { return "ramfs" }

func (fs *FS) Root() *vfs.Inode {
	fs.root.mu.Lock()
	fs.root.refCount++
	fs.root.mu.Unlock()
	return fs.root.inode
}

// nodeOf resolves the backing node for an inode by walking the tree from
// the root and matching Ino: vfs.Inode carries no back-pointer to its node
// and ramfs keeps no Ino->node table.
func (fs *FS) nodeOf(n *vfs.Inode) *node {
	return fs.lookupIno(fs.root, n.Ino)
}

func (fs *FS) lookupIno(start *node, ino uint64) *node {
	if start.inode.Ino == ino {
		return start
	}
	start.mu.RLock()
	defer start.mu.RUnlock()
	for _, c := range start.children {
		if found := fs.lookupIno(c, ino); found != nil {
			return found
		}
	}
	return nil
}

func (fs *FS) GetEntry(dir *vfs.Inode, name string) (*vfs.Inode, error) {
	dn := fs.nodeOf(dir)
	if dn == nil {
		return nil, kerr.ENOENT
	}
	if dn.children == nil {
		return nil, kerr.ENOTDIR
	}
	dn.mu.RLock()
	defer dn.mu.RUnlock()
	child, ok := dn.children[name]
	if !ok {
		return nil, kerr.ENOENT
	}
	child.mu.Lock()
	child.refCount++
	child.mu.Unlock()
	return child.inode, nil
}

func (fs *FS) RetainInode(n *vfs.Inode) {
	if nd := fs.nodeOf(n); nd != nil {
		nd.mu.Lock()
		nd.refCount++
		nd.mu.Unlock()
	}
}

func (fs *FS) ReleaseInode(n *vfs.Inode) {
	nd := fs.nodeOf(n)
	if nd == nil {
		return
	}
	nd.mu.Lock()
	nd.refCount--
	nd.mu.Unlock()
}

func (fs *FS) Open(n *vfs.Inode, flags vfs.OpenFlags) (vfs.Handle, error) {
	nd := fs.nodeOf(n)
	if nd == nil {
		return nil, kerr.ENOENT
	}
	if nd.children != nil {
		return &dirHandle{node: nd}, nil
	}
	h := &fileHandle{node: nd}
	h.SetFlags(flags)
	if flags.Has(vfs.OTrunc) {
		nd.mu.Lock()
		nd.data = nil
		nd.mu.Unlock()
	}
	if flags.Has(vfs.OAppend) {
		nd.mu.RLock()
		h.offset = int64(len(nd.data))
		nd.mu.RUnlock()
	}
	return h, nil
}

func (fs *FS) Stat(n *vfs.Inode) (vfs.Stat, error) {
	nd := fs.nodeOf(n)
	if nd == nil {
		return vfs.Stat{}, kerr.ENOENT
	}
	nd.mu.RLock()
	defer nd.mu.RUnlock()
	now := time.Now()
	return vfs.Stat{
		Ino:   n.Ino,
		Mode:  nd.mode,
		Nlink: 1,
		Size:  int64(len(nd.data)),
		Rdev:  nd.rdev,
		Mtim:  now,
		Ctim:  now,
		Atim:  now,
	}, nil
}

func (fs *FS) Truncate(n *vfs.Inode, size int64) error {
	nd := fs.nodeOf(n)
	if nd == nil {
		return kerr.ENOENT
	}
	nd.mu.Lock()
	defer nd.mu.Unlock()
	if int64(len(nd.data)) >= size {
		nd.data = nd.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, nd.data)
	nd.data = grown
	return nil
}

func (fs *FS) Chmod(n *vfs.Inode, mode uint32) error {
	nd := fs.nodeOf(n)
	if nd == nil {
		return kerr.ENOENT
	}
	nd.mu.Lock()
	nd.mode = mode
	nd.mu.Unlock()
	return nil
}

func (fs *FS) Create(dir *vfs.Inode, name string, mode uint32) (*vfs.Inode, error) {
	dn := fs.nodeOf(dir)
	if dn == nil || dn.children == nil {
		return nil, kerr.ENOTDIR
	}
	dn.mu.Lock()
	defer dn.mu.Unlock()
	if _, ok := dn.children[name]; ok {
		return nil, kerr.EEXIST
	}
	n := fs.newNode(name, vfs.TypeFile, mode)
	dn.children[name] = n
	return n.inode, nil
}

func (fs *FS) Mkdir(dir *vfs.Inode, name string, mode uint32) error {
	dn := fs.nodeOf(dir)
	if dn == nil || dn.children == nil {
		return kerr.ENOTDIR
	}
	dn.mu.Lock()
	defer dn.mu.Unlock()
	if _, ok := dn.children[name]; ok {
		return kerr.EEXIST
	}
	n := fs.newNode(name, vfs.TypeDir, mode)
	dn.children[name] = n
	return nil
}

func (fs *FS) Rmdir(dir *vfs.Inode, name string) error {
	dn := fs.nodeOf(dir)
	if dn == nil || dn.children == nil {
		return kerr.ENOTDIR
	}
	dn.mu.Lock()
	defer dn.mu.Unlock()
	child, ok := dn.children[name]
	if !ok {
		return kerr.ENOENT
	}
	if child.children == nil {
		return kerr.ENOTDIR
	}
	child.mu.RLock()
	empty := len(child.children) == 0
	child.mu.RUnlock()
	if !empty {
		return kerr.ENOTEMPTY
	}
	delete(dn.children, name)
	return nil
}

func (fs *FS) Unlink(dir *vfs.Inode, name string) error {
	dn := fs.nodeOf(dir)
	if dn == nil || dn.children == nil {
		return kerr.ENOTDIR
	}
	dn.mu.Lock()
	defer dn.mu.Unlock()
	child, ok := dn.children[name]
	if !ok {
		return kerr.ENOENT
	}
	if child.children != nil {
		return kerr.EISDIR
	}
	delete(dn.children, name)
	return nil
}

func (fs *FS) Rename(oldDir *vfs.Inode, oldName string, newDir *vfs.Inode, newName string) error {
	odn := fs.nodeOf(oldDir)
	ndn := fs.nodeOf(newDir)
	if odn == nil || ndn == nil || odn.children == nil || ndn.children == nil {
		return kerr.ENOTDIR
	}
	odn.mu.Lock()
	child, ok := odn.children[oldName]
	if !ok {
		odn.mu.Unlock()
		return kerr.ENOENT
	}
	delete(odn.children, oldName)
	odn.mu.Unlock()

	if ndn != odn {
		ndn.mu.Lock()
	}
	child.mu.Lock()
	child.name = newName
	child.mu.Unlock()
	ndn.children[newName] = child
	if ndn != odn {
		ndn.mu.Unlock()
	}
	return nil
}

func (fs *FS) Link(dir *vfs.Inode, name string, target *vfs.Inode) error {
	dn := fs.nodeOf(dir)
	tn := fs.nodeOf(target)
	if dn == nil || tn == nil || dn.children == nil {
		return kerr.ENOTDIR
	}
	if tn.children != nil {
		return kerr.EPERM // hard links to directories are not supported, matching Linux
	}
	dn.mu.Lock()
	defer dn.mu.Unlock()
	if _, ok := dn.children[name]; ok {
		return kerr.EEXIST
	}
	tn.mu.Lock()
	tn.refCount++
	tn.mu.Unlock()
	dn.children[name] = tn
	return nil
}

func (fs *FS) Symlink(dir *vfs.Inode, name string, target string) error {
	dn := fs.nodeOf(dir)
	if dn == nil || dn.children == nil {
		return kerr.ENOTDIR
	}
	dn.mu.Lock()
	defer dn.mu.Unlock()
	if _, ok := dn.children[name]; ok {
		return kerr.EEXIST
	}
	n := fs.newNode(name, vfs.TypeSymlink, 0777)
	n.target = target
	dn.children[name] = n
	return nil
}

func (fs *FS) Readlink(n *vfs.Inode) (string, error) {
	nd := fs.nodeOf(n)
	if nd == nil || nd.inode.Type != vfs.TypeSymlink {
		return "", kerr.EINVAL
	}
	nd.mu.RLock()
	defer nd.mu.RUnlock()
	return nd.target, nil
}

func (fs *FS) ExLock()   { fs.mu.Lock() }
func (fs *FS) ExUnlock() { fs.mu.Unlock() }
func (fs *FS) ShLock()   { fs.mu.RLock() }
func (fs *FS) ShUnlock() { fs.mu.RUnlock() }

// Unmount reports EBUSY if any node other than the root still holds an
// external reference, per spec.md §4.8.
func (fs *FS) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var busy func(n *node) bool
	busy = func(n *node) bool {
		n.mu.RLock()
		defer n.mu.RUnlock()
		if n != fs.root && n.refCount > 0 {
			return true
		}
		for _, c := range n.children {
			if busy(c) {
				return true
			}
		}
		return false
	}
	if busy(fs.root) {
		return kerr.EBUSY
	}
	return nil
}
