package waitobj

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalWakesWaiter(t *testing.T) {
	w := New(TypeKcond)
	mw := NewMultiWaiter(w)
	done := make(chan []int, 1)
	go func() { done <- mw.WaitAny(nil) }()

	time.Sleep(10 * time.Millisecond)
	w.Signal()

	select {
	case idx := <-done:
		assert.Equal(t, []int{0}, idx)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestAlreadyReadyReturnsImmediately(t *testing.T) {
	w := New(TypeKmutex)
	w.Signal()
	mw := NewMultiWaiter(w)
	idx := mw.WaitAny(nil)
	assert.Equal(t, []int{0}, idx)
}

func TestMultiWaiterWakesOnAnyObject(t *testing.T) {
	a := New(TypeKcond)
	b := New(TypeTimer)
	mw := NewMultiWaiter(a, b)
	done := make(chan []int, 1)
	go func() { done <- mw.WaitAny(nil) }()

	time.Sleep(10 * time.Millisecond)
	b.Signal()

	select {
	case idx := <-done:
		require.Len(t, idx, 1)
		assert.Equal(t, 1, idx[0])
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestWaitAnyAbortedByDone(t *testing.T) {
	w := New(TypeKcond)
	mw := NewMultiWaiter(w)
	abort := make(chan struct{})
	done := make(chan []int, 1)
	go func() { done <- mw.WaitAny(abort) }()

	time.Sleep(10 * time.Millisecond)
	close(abort)

	select {
	case idx := <-done:
		assert.Empty(t, idx)
	case <-time.After(time.Second):
		t.Fatal("waiter never aborted")
	}
}

func TestResetClearsReadiness(t *testing.T) {
	w := New(TypeTimer)
	w.Signal()
	assert.True(t, w.Ready())
	w.Reset()
	assert.False(t, w.Ready())
}
