package vfs

import (
	"strings"

	"github.com/tilck-go/tilck/kerr"
	"golang.org/x/sync/singleflight"
)

// ResolvedPath is the result of walking a path to its terminal inode, per
// spec.md §4.8.
type ResolvedPath struct {
	FS       FS
	Inode    *Inode
	Dir      *Inode // the terminal inode's parent, for rename/unlink/link
	LastName string // the terminal component's name within Dir
	Exclusive bool
}

// maxSymlinkDepth bounds symlink-chasing, per spec.md §4.8's ELOOP case.
const maxSymlinkDepth = 8

// resolveGroup deduplicates concurrent resolutions of the same path: two
// tasks stat()ing the same hot file shouldn't both walk the tree and take
// the same shared locks twice. Grounded on rclone's use of singleflight to
// collapse concurrent identical backend calls.
var resolveGroup singleflight.Group

// Resolve walks path from the VFS root through mnt, returning the locked
// terminal inode, per spec.md §4.8's six-step algorithm:
//  1. Split path into components.
//  2. Start at the owning mount's root inode (shared-lock the filesystem).
//  3. For each component but the last, GetEntry it under the filesystem's
//     shared lock and descend; ENOTDIR/ENOENT abort immediately.
//  4. On the last component, decide between shared and exclusive inode
//     lock based on exLock.
//  5. If the terminal inode is a symlink and followLastSymlink is set,
//     substitute its target and restart resolution (bounded by
//     maxSymlinkDepth, else ELOOP).
//  6. Return the resolved, locked inode plus its parent directory (for
//     callers that need to mutate the directory entry, e.g. rename/unlink).
func Resolve(mnt *MountTable, path string, exLock bool, followLastSymlink bool) (*ResolvedPath, error) {
	v, err, _ := resolveGroup.Do(resolveKey(path, exLock, followLastSymlink), func() (interface{}, error) {
		return resolveOnce(mnt, path, exLock, followLastSymlink, 0)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ResolvedPath), nil
}

func resolveKey(path string, exLock, follow bool) string {
	var b strings.Builder
	b.WriteString(path)
	if exLock {
		b.WriteByte('x')
	}
	if follow {
		b.WriteByte('f')
	}
	return b.String()
}

func resolveOnce(mnt *MountTable, path string, exLock, followLastSymlink bool, depth int) (*ResolvedPath, error) {
	if depth > maxSymlinkDepth {
		return nil, kerr.ELOOP
	}
	if !strings.HasPrefix(path, "/") {
		return nil, kerr.EINVAL
	}
	mp, rel, ok := mnt.Lookup(path)
	if !ok {
		return nil, kerr.ENOENT
	}
	fs := mp.FS
	fs.ShLock()
	defer fs.ShUnlock()

	cur := fs.Root()
	var parent *Inode
	lastName := ""

	parts := splitPath(rel)
	if len(parts) == 0 {
		// path resolved exactly to the mount root.
		cur.Lock(exLock)
		return &ResolvedPath{FS: fs, Inode: cur, Dir: nil, LastName: "", Exclusive: exLock}, nil
	}

	for i, name := range parts {
		isLast := i == len(parts)-1
		next, err := fs.GetEntry(cur, name)
		if err != nil {
			return nil, err
		}
		if !isLast {
			cur = next
			continue
		}
		parent = cur
		lastName = name
		cur = next
	}

	if followLastSymlink && cur.Type == TypeSymlink {
		target, err := fs.Readlink(cur)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(target, "/") {
			target = joinPath(mp.Path, strings.TrimPrefix(path[:len(path)-len(lastName)], mp.Path), target)
		}
		return resolveOnce(mnt, target, exLock, followLastSymlink, depth+1)
	}

	cur.Lock(exLock)
	return &ResolvedPath{FS: fs, Inode: cur, Dir: parent, LastName: lastName, Exclusive: exLock}, nil
}

// Release unlocks and releases the resolved inode, the mirror image of
// Resolve, per spec.md §4.8 ("every successful resolve() must be paired
// with a release").
func (r *ResolvedPath) Release() {
	r.Inode.Unlock(r.Exclusive)
	r.Inode.Release()
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	raw := strings.Split(p, "/")
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c != "" && c != "." {
			out = append(out, c)
		}
	}
	return out
}

func joinPath(parts ...string) string {
	return strings.Join(parts, "/")
}
