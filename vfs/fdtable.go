package vfs

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tilck-go/tilck/kerr"
)

// FDTable is a process's file-descriptor table, per spec.md §3/§4.8: an
// fd is just an index into a per-process slice of Handles. fork() gives
// the child its own table (see Fork) holding Dup'd handles.
type FDTable struct {
	mu      sync.Mutex
	entries []*fdEntry
}

type fdEntry struct {
	h       Handle
	cloexec bool
}

// NewFDTable returns an empty table.
func NewFDTable() *FDTable {
	return &FDTable{}
}

// Install places h in the lowest-numbered free slot, per POSIX's "lowest
// available fd" rule for open()/dup()/pipe().
func (t *FDTable) Install(h Handle, cloexec bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e == nil {
			t.entries[i] = &fdEntry{h: h, cloexec: cloexec}
			return i
		}
	}
	t.entries = append(t.entries, &fdEntry{h: h, cloexec: cloexec})
	return len(t.entries) - 1
}

// Get returns the handle at fd, or EBADF.
func (t *FDTable) Get(fd int) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.entries) || t.entries[fd] == nil {
		return nil, kerr.EBADF
	}
	return t.entries[fd].h, nil
}

// Close closes and clears fd.
func (t *FDTable) Close(fd int) error {
	t.mu.Lock()
	if fd < 0 || fd >= len(t.entries) || t.entries[fd] == nil {
		t.mu.Unlock()
		return kerr.EBADF
	}
	e := t.entries[fd]
	t.entries[fd] = nil
	t.mu.Unlock()
	return e.h.Close()
}

// Dup installs a new reference to fd's handle at the lowest free slot.
func (t *FDTable) Dup(fd int) (int, error) {
	h, err := t.Get(fd)
	if err != nil {
		return -1, err
	}
	dup, err := h.Dup()
	if err != nil {
		return -1, err
	}
	return t.Install(dup, false), nil
}

// Dup2 makes newFd reference the same handle as oldFd, closing whatever
// newFd previously held, per dup2()'s semantics. newFd == oldFd is a no-op
// that still validates oldFd.
func (t *FDTable) Dup2(oldFd, newFd int) error {
	h, err := t.Get(oldFd)
	if err != nil {
		return err
	}
	if oldFd == newFd {
		return nil
	}
	dup, err := h.Dup()
	if err != nil {
		return err
	}
	t.mu.Lock()
	for len(t.entries) <= newFd {
		t.entries = append(t.entries, nil)
	}
	old := t.entries[newFd]
	t.entries[newFd] = &fdEntry{h: dup}
	t.mu.Unlock()
	if old != nil {
		old.h.Close()
	}
	return nil
}

// SetCloexec sets or clears fd's FD_CLOEXEC flag.
func (t *FDTable) SetCloexec(fd int, cloexec bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.entries) || t.entries[fd] == nil {
		return kerr.EBADF
	}
	t.entries[fd].cloexec = cloexec
	return nil
}

// Cloexec reports fd's FD_CLOEXEC flag.
func (t *FDTable) Cloexec(fd int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.entries) || t.entries[fd] == nil {
		return false, kerr.EBADF
	}
	return t.entries[fd].cloexec, nil
}

// CloseOnExec closes every fd flagged FD_CLOEXEC, called from execve().
func (t *FDTable) CloseOnExec() {
	t.mu.Lock()
	var toClose []Handle
	for i, e := range t.entries {
		if e != nil && e.cloexec {
			toClose = append(toClose, e.h)
			t.entries[i] = nil
		}
	}
	t.mu.Unlock()
	for _, h := range toClose {
		h.Close()
	}
}

// Fork returns a new FDTable sharing every still-open handle via Dup, the
// fork() fd-table semantics of spec.md §4.11.
func (t *FDTable) Fork() (*FDTable, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := &FDTable{entries: make([]*fdEntry, len(t.entries))}
	for i, e := range t.entries {
		if e == nil {
			continue
		}
		dup, err := e.h.Dup()
		if err != nil {
			return nil, err
		}
		out.entries[i] = &fdEntry{h: dup, cloexec: e.cloexec}
	}
	return out, nil
}

// CloseAll closes every open fd, called at process exit. Individual
// close failures don't stop the sweep; they're collected and returned
// together so a caller can log every handle that failed to tear down
// rather than only the first.
func (t *FDTable) CloseAll() error {
	t.mu.Lock()
	entries := t.entries
	t.entries = nil
	t.mu.Unlock()

	var result *multierror.Error
	for _, e := range entries {
		if e == nil {
			continue
		}
		if err := e.h.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
