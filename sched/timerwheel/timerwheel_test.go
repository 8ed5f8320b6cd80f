package timerwheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/sched/waitobj"
)

func TestTimerFiresAtDeadline(t *testing.T) {
	w := New()
	obj := waitobj.New(waitobj.TypeTimer)
	w.Schedule(3, obj)

	for i := 0; i < 2; i++ {
		fired := w.Tick()
		assert.Empty(t, fired)
		assert.False(t, obj.Ready())
	}
	fired := w.Tick()
	require.Len(t, fired, 1)
	assert.True(t, obj.Ready())
}

func TestEarlierDeadlineFiresFirst(t *testing.T) {
	w := New()
	late := waitobj.New(waitobj.TypeTimer)
	early := waitobj.New(waitobj.TypeTimer)
	w.Schedule(5, late)
	w.Schedule(1, early)

	fired := w.Tick()
	require.Len(t, fired, 1)
	assert.Same(t, early, fired[0].Obj)
	assert.False(t, late.Ready())
}

func TestCancelPreventsFiring(t *testing.T) {
	w := New()
	obj := waitobj.New(waitobj.TypeTimer)
	timer := w.Schedule(1, obj)
	w.Cancel(timer)

	fired := w.Tick()
	assert.Empty(t, fired)
	assert.False(t, obj.Ready())
	assert.Equal(t, 0, w.Len())
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	w := New()
	obj := waitobj.New(waitobj.TypeTimer)
	timer := w.Schedule(1, obj)
	w.Tick()
	assert.NotPanics(t, func() { w.Cancel(timer) })
}

func TestLenTracksPendingTimers(t *testing.T) {
	w := New()
	w.Schedule(10, waitobj.New(waitobj.TypeTimer))
	w.Schedule(20, waitobj.New(waitobj.TypeTimer))
	assert.Equal(t, 2, w.Len())
}
