package ramfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/vfs"
)

func TestCreateWriteReadRoundtrip(t *testing.T) {
	fs := New()
	root := fs.Root()
	n, err := fs.Create(root, "hello.txt", 0644)
	require.NoError(t, err)

	h, err := fs.Open(n, vfs.OWronly|vfs.OCreat)
	require.NoError(t, err)
	written, err := h.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, written)
	require.NoError(t, h.Close())

	h2, err := fs.Open(n, vfs.ORdonly)
	require.NoError(t, err)
	buf := make([]byte, 32)
	read, err := h2.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:read]))
}

func TestMkdirAndGetEntry(t *testing.T) {
	fs := New()
	root := fs.Root()
	require.NoError(t, fs.Mkdir(root, "sub", 0755))
	entry, err := fs.GetEntry(root, "sub")
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeDir, entry.Type)
}

func TestGetEntryMissingReturnsENOENT(t *testing.T) {
	fs := New()
	_, err := fs.GetEntry(fs.Root(), "nope")
	assert.ErrorIs(t, err, kerr.ENOENT)
}

func TestRmdirFailsWhenNotEmpty(t *testing.T) {
	fs := New()
	root := fs.Root()
	require.NoError(t, fs.Mkdir(root, "sub", 0755))
	sub, err := fs.GetEntry(root, "sub")
	require.NoError(t, err)
	_, err = fs.Create(sub, "f", 0644)
	require.NoError(t, err)

	err = fs.Rmdir(root, "sub")
	assert.ErrorIs(t, err, kerr.ENOTEMPTY)
}

func TestUnlinkRemovesFile(t *testing.T) {
	fs := New()
	root := fs.Root()
	_, err := fs.Create(root, "f", 0644)
	require.NoError(t, err)
	require.NoError(t, fs.Unlink(root, "f"))
	_, err = fs.GetEntry(root, "f")
	assert.ErrorIs(t, err, kerr.ENOENT)
}

func TestRenameMovesAcrossDirectories(t *testing.T) {
	fs := New()
	root := fs.Root()
	require.NoError(t, fs.Mkdir(root, "dst", 0755))
	dst, err := fs.GetEntry(root, "dst")
	require.NoError(t, err)
	_, err = fs.Create(root, "f", 0644)
	require.NoError(t, err)

	require.NoError(t, fs.Rename(root, "f", dst, "g"))
	_, err = fs.GetEntry(root, "f")
	assert.ErrorIs(t, err, kerr.ENOENT)
	_, err = fs.GetEntry(dst, "g")
	assert.NoError(t, err)
}

func TestSymlinkReadlink(t *testing.T) {
	fs := New()
	root := fs.Root()
	require.NoError(t, fs.Symlink(root, "link", "/target"))
	n, err := fs.GetEntry(root, "link")
	require.NoError(t, err)
	target, err := fs.Readlink(n)
	require.NoError(t, err)
	assert.Equal(t, "/target", target)
}

func TestTruncateGrowsAndShrinks(t *testing.T) {
	fs := New()
	root := fs.Root()
	n, err := fs.Create(root, "f", 0644)
	require.NoError(t, err)
	h, err := fs.Open(n, vfs.OWronly)
	require.NoError(t, err)
	_, err = h.Write([]byte("0123456789"))
	require.NoError(t, err)

	require.NoError(t, fs.Truncate(n, 4))
	st, err := fs.Stat(n)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Size)

	require.NoError(t, fs.Truncate(n, 8))
	st, err = fs.Stat(n)
	require.NoError(t, err)
	assert.Equal(t, int64(8), st.Size)
}

func TestGetDentsListsChildren(t *testing.T) {
	fs := New()
	root := fs.Root()
	_, err := fs.Create(root, "a", 0644)
	require.NoError(t, err)
	_, err = fs.Create(root, "b", 0644)
	require.NoError(t, err)

	h, err := fs.Open(root, vfs.ORdonly)
	require.NoError(t, err)
	entries := make([]vfs.DirEntry, 8)
	n, err := h.GetDents(entries)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUnmountFailsWhileReferenced(t *testing.T) {
	fs := New()
	root := fs.Root() // retains the root an extra time
	_ = root
	n, err := fs.Create(fs.Root(), "f", 0644)
	require.NoError(t, err)
	h, err := fs.Open(n, vfs.ORdonly)
	require.NoError(t, err)
	_ = h

	err = fs.Unmount()
	assert.ErrorIs(t, err, kerr.EBUSY)
}
