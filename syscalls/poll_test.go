package syscalls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/usercopy"
	"github.com/tilck-go/tilck/vfs/ramfs"
)

func putPollfd(buf []byte, idx, fd int, events int16) {
	rec := buf[idx*pollfdSize:]
	rec[0] = byte(fd)
	rec[1] = byte(fd >> 8)
	rec[2] = byte(fd >> 16)
	rec[3] = byte(fd >> 24)
	rec[4] = byte(events)
	rec[5] = byte(events >> 8)
}

// TestPollTimeoutAndReadyFD is spec.md §8 scenario S5: poll() with a
// 200ms timeout on a pipe's read fd must wake as soon as data arrives
// (here, at ~50ms), long before the timeout would otherwise expire.
func TestPollTimeoutAndReadyFD(t *testing.T) {
	table, ctx := newTestContext(t)

	r, w := ramfs.NewPipe()
	rfd := ctx.Proc.FDs.Install(r, false)

	buf := make([]byte, pollfdSize)
	putPollfd(buf, 0, rfd, PollIn)
	require.NoError(t, usercopy.CopyToUser(ctx.Space, 1, buf))

	start := time.Now()
	result := make(chan int64, 1)
	go func() {
		n, err := table.Dispatch(ctx, SysPoll, [6]int64{1, 1, 200})
		require.NoError(t, err)
		result <- n
	}()

	time.Sleep(50 * time.Millisecond)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)

	select {
	case n := <-result:
		elapsed := time.Since(start)
		assert.Equal(t, int64(1), n)
		assert.Less(t, elapsed, 200*time.Millisecond, "poll should wake on the write, not the timeout")

		out := make([]byte, pollfdSize)
		require.NoError(t, usercopy.CopyFromUser(ctx.Space, 1, out))
		revents := int16(out[6]) | int16(out[7])<<8
		assert.NotZero(t, revents&PollIn)
	case <-time.After(time.Second):
		t.Fatal("poll never returned")
	}
}

// TestPollTimeoutExpiresWithNoActivity covers the other half of S5: when
// nothing ever becomes ready, poll() returns 0 once its timeout elapses
// rather than blocking forever.
func TestPollTimeoutExpiresWithNoActivity(t *testing.T) {
	table, ctx := newTestContext(t)

	r, _ := ramfs.NewPipe()
	rfd := ctx.Proc.FDs.Install(r, false)

	buf := make([]byte, pollfdSize)
	putPollfd(buf, 0, rfd, PollIn)
	require.NoError(t, usercopy.CopyToUser(ctx.Space, 1, buf))

	start := time.Now()
	n, err := table.Dispatch(ctx, SysPoll, [6]int64{1, 1, 50})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

// TestPollNonBlockingReturnsImmediately covers timeout_ms == 0: poll()
// must not block at all when nothing is ready.
func TestPollNonBlockingReturnsImmediately(t *testing.T) {
	table, ctx := newTestContext(t)

	r, _ := ramfs.NewPipe()
	rfd := ctx.Proc.FDs.Install(r, false)

	buf := make([]byte, pollfdSize)
	putPollfd(buf, 0, rfd, PollIn)
	require.NoError(t, usercopy.CopyToUser(ctx.Space, 1, buf))

	start := time.Now()
	n, err := table.Dispatch(ctx, SysPoll, [6]int64{1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}
