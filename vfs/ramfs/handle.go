package ramfs

import (
	"sync"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/vfs"
)

// fileHandle is an open ramfs file: the handle (not the inode) owns the
// file offset, so independently-opened handles of the same file have
// separate offsets. Dup copies the current offset into the new handle;
// from then on the two offsets move independently.
type fileHandle struct {
	vfs.BaseHandle
	node   *node
	mu     sync.Mutex
	offset int64
}

func (h *fileHandle) Read(buf []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.node.mu.RLock()
	defer h.node.mu.RUnlock()
	if h.offset >= int64(len(h.node.data)) {
		return 0, nil
	}
	n := copy(buf, h.node.data[h.offset:])
	h.offset += int64(n)
	return n, nil
}

func (h *fileHandle) Write(buf []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	if h.Flags().Has(vfs.OAppend) {
		h.offset = int64(len(h.node.data))
	}
	end := h.offset + int64(len(buf))
	if end > int64(len(h.node.data)) {
		grown := make([]byte, end)
		copy(grown, h.node.data)
		h.node.data = grown
	}
	n := copy(h.node.data[h.offset:end], buf)
	h.offset += int64(n)
	return n, nil
}

func (h *fileHandle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.node.mu.RLock()
	size := int64(len(h.node.data))
	h.node.mu.RUnlock()
	switch whence {
	case 0: // SEEK_SET
		h.offset = offset
	case 1: // SEEK_CUR
		h.offset += offset
	case 2: // SEEK_END
		h.offset = size + offset
	default:
		return 0, kerr.EINVAL
	}
	if h.offset < 0 {
		h.offset = 0
		return 0, kerr.EINVAL
	}
	return h.offset, nil
}

func (h *fileHandle) Stat() (vfs.Stat, error) {
	return h.node.inode.FS.Stat(h.node.inode)
}

func (h *fileHandle) Dup() (vfs.Handle, error) {
	return &fileHandle{node: h.node, offset: h.offset, BaseHandle: h.BaseHandle}, nil
}

func (h *fileHandle) Node() *vfs.Inode { return h.node.inode }

func (h *fileHandle) Close() error {
	h.node.inode.FS.(*FS).ReleaseInode(h.node.inode)
	return nil
}

// dirHandle is an open ramfs directory, supporting only getdents(), per
// POSIX (read()/write() on a directory fd return EISDIR).
type dirHandle struct {
	vfs.BaseHandle
	node *node
	mu   sync.Mutex
	pos  int
}

func (h *dirHandle) Read(buf []byte) (int, error)  { return 0, kerr.EISDIR }
func (h *dirHandle) Write(buf []byte) (int, error) { return 0, kerr.EISDIR }

func (h *dirHandle) GetDents(entries []vfs.DirEntry) (int, error) {
	h.node.mu.RLock()
	names := make([]string, 0, len(h.node.children))
	for name := range h.node.children {
		names = append(names, name)
	}
	h.node.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for n < len(entries) && h.pos < len(names) {
		name := names[h.pos]
		h.node.mu.RLock()
		child := h.node.children[name]
		h.node.mu.RUnlock()
		entries[n] = vfs.DirEntry{Ino: child.inode.Ino, Off: int64(h.pos + 1), Type: child.inode.Type, Name: name}
		n++
		h.pos++
	}
	return n, nil
}

func (h *dirHandle) Stat() (vfs.Stat, error) {
	return h.node.inode.FS.Stat(h.node.inode)
}

func (h *dirHandle) Dup() (vfs.Handle, error) {
	return &dirHandle{node: h.node, pos: h.pos, BaseHandle: h.BaseHandle}, nil
}

func (h *dirHandle) Node() *vfs.Inode { return h.node.inode }

func (h *dirHandle) Close() error {
	h.node.inode.FS.(*FS).ReleaseInode(h.node.inode)
	return nil
}
