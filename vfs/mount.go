package vfs

import (
	"strings"
	"sync"

	"github.com/tilck-go/tilck/kerr"
)

// MountPoint binds one FS instance into the path tree at Path, per
// spec.md §3 ("Mount point").
type MountPoint struct {
	Path  string // always cleaned, always without a trailing slash except "/"
	FS    FS
	Flags FSFlags
}

// MountTable holds every live mount, resolving a path to its owning
// filesystem by longest-prefix match — the same rule rclone's vfs cache
// registry and Linux's namespace code both use.
type MountTable struct {
	mu     sync.RWMutex
	mounts []MountPoint // kept sorted longest-path-first
}

// NewMountTable returns an empty table; callers mount "/" before any path
// lookup succeeds.
func NewMountTable() *MountTable {
	return &MountTable{}
}

// Mount registers fs at path. path must not already have a mount, per
// spec.md §4.8 ("EBUSY: path already a mount point").
func (t *MountTable) Mount(path string, fs FS, flags FSFlags) error {
	path = cleanMountPath(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.mounts {
		if m.Path == path {
			return kerr.EBUSY
		}
	}
	t.mounts = append(t.mounts, MountPoint{Path: path, FS: fs, Flags: flags})
	// Longest path first so Resolve's linear scan finds the most specific
	// mount before a shorter ancestor.
	for i := len(t.mounts) - 1; i > 0 && len(t.mounts[i].Path) > len(t.mounts[i-1].Path); i-- {
		t.mounts[i], t.mounts[i-1] = t.mounts[i-1], t.mounts[i]
	}
	return nil
}

// Unmount removes the mount at path, failing with EBUSY if the
// filesystem's own Unmount reports outstanding references.
func (t *MountTable) Unmount(path string) error {
	path = cleanMountPath(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.mounts {
		if m.Path != path {
			continue
		}
		if err := m.FS.Unmount(); err != nil {
			return err
		}
		t.mounts = append(t.mounts[:i], t.mounts[i+1:]...)
		return nil
	}
	return kerr.ENOENT
}

// Lookup returns the mount owning path (the longest registered prefix) and
// the path remainder relative to that mount's root.
func (t *MountTable) Lookup(path string) (MountPoint, string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.mounts {
		if m.Path == "/" {
			return m, strings.TrimPrefix(path, "/"), true
		}
		if path == m.Path {
			return m, "", true
		}
		if strings.HasPrefix(path, m.Path+"/") {
			return m, strings.TrimPrefix(path, m.Path+"/"), true
		}
	}
	return MountPoint{}, "", false
}

func cleanMountPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return "/"
	}
	return p
}
