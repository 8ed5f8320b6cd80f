package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSignalDeliveryOrderingAndEINTR is spec.md §8's S2: a task blocked in
// WaitPending (pause()'s underlying primitive) wakes on the first signal
// raised against it, runs that signal's handler exactly once, and a second
// signal raised later is observed only by a later, separate check — not by
// the first WaitPending call returning twice. pause()'s EINTR return is
// not exercised here: this test works on the Frame alone.
func TestSignalDeliveryOrderingAndEINTR(t *testing.T) {
	f := NewFrame()
	require.True(t, f.SetHandler(SIGHUP, Handler{Disposition: Custom}))
	require.True(t, f.SetHandler(SIGINT, Handler{Disposition: Custom}))

	done := make(chan int, 1)
	go func() { done <- f.WaitPending() }()

	time.Sleep(10 * time.Millisecond)
	f.Raise(SIGHUP)

	var sig int
	select {
	case sig = <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitPending never woke for SIGHUP")
	}
	assert.Equal(t, SIGHUP, sig)

	// Deliver exactly once: consume it the way deliverSignal would.
	h := f.Handlers[sig]
	f.Consume(sig)
	require.Equal(t, Custom, h.Disposition)
	f.EnterHandler(sig)
	f.Sigreturn()
	assert.False(t, f.Pending.Has(SIGHUP), "SIGHUP must be consumed exactly once")
	assert.Equal(t, 0, f.NestedLevel, "Sigreturn must unwind the handler's mask bracket")

	// The second signal, raised later, is not seen by the already-returned
	// WaitPending call — it requires a fresh observation.
	f.Raise(SIGINT)
	assert.Equal(t, SIGINT, f.Deliverable())
}

func TestWaitPendingReturnsImmediatelyWhenAlreadyPending(t *testing.T) {
	f := NewFrame()
	f.Raise(SIGUSR1)
	sig := f.WaitPending()
	assert.Equal(t, SIGUSR1, sig)
}

func TestUncatchableSignalsBypassBlockedMask(t *testing.T) {
	f := NewFrame()
	f.Blocked.Add(SIGKILL)
	f.Raise(SIGKILL)
	assert.Equal(t, SIGKILL, f.Deliverable())
}

func TestIgnoredSignalIsNeverDeliverable(t *testing.T) {
	f := NewFrame()
	require.True(t, f.SetHandler(SIGUSR2, Handler{Disposition: Ignore}))
	f.Raise(SIGUSR2)
	assert.Equal(t, 0, f.Deliverable())
}
