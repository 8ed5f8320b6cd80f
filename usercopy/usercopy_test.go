package usercopy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/mm/physalloc"
)

func newSpace(t *testing.T) *Space {
	t.Helper()
	alloc := physalloc.New(0x100000, 8)
	mem := physalloc.NewMemory()
	kh := pagedir.NewKernelHalf()
	pd := pagedir.New(alloc, kh, pagedir.ForkCoW)
	frame, ok := alloc.AllocFrame()
	require.True(t, ok)
	require.NoError(t, pd.MapPage(1, frame, pagedir.FlagUser|pagedir.FlagWrite))
	return &Space{PageDir: pd, Mem: mem}
}

func TestCopyToUserThenFromUserRoundtrips(t *testing.T) {
	sp := newSpace(t)
	payload := bytes.Repeat([]byte{0xAB}, physalloc.PageSize)

	require.NoError(t, CopyToUser(sp, 1, payload))

	out := make([]byte, physalloc.PageSize)
	require.NoError(t, CopyFromUser(sp, 1, out))
	assert.Equal(t, payload, out)
}

func TestCopyToUserUnmappedPageFaultsEFAULT(t *testing.T) {
	sp := newSpace(t)
	err := CopyToUser(sp, 99, []byte{1})
	assert.ErrorIs(t, err, kerr.EFAULT)
}

func TestCopyFromUserUnmappedPageFaultsEFAULT(t *testing.T) {
	sp := newSpace(t)
	buf := make([]byte, 1)
	err := CopyFromUser(sp, 99, buf)
	assert.ErrorIs(t, err, kerr.EFAULT)
}

func TestCopyStringFromUserStopsAtNul(t *testing.T) {
	sp := newSpace(t)
	payload := make([]byte, physalloc.PageSize)
	copy(payload, "/bin/sh\x00garbage")
	require.NoError(t, CopyToUser(sp, 1, payload))

	s, err := CopyStringFromUser(sp, 1, 256)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", s)
}

func TestCopyStringFromUserTooLongIsENAMETOOLONG(t *testing.T) {
	sp := newSpace(t)
	payload := bytes.Repeat([]byte{'a'}, physalloc.PageSize)
	require.NoError(t, CopyToUser(sp, 1, payload))

	_, err := CopyStringFromUser(sp, 1, 16)
	assert.ErrorIs(t, err, kerr.ENAMETOOLONG)
}
