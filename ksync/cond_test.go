package ksync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondSignalWakesOneWaiter(t *testing.T) {
	m := NewMutex(0)
	c := NewKcond()
	done := make(chan bool, 1)

	m.Lock(1)
	go func() {
		m.Lock(2)
		timedOut := c.Wait(m, 2, 0)
		done <- timedOut
		m.Unlock(2)
	}()

	for c.WaiterCount() != 1 {
		time.Sleep(time.Millisecond)
	}
	m.Unlock(1)
	c.SignalOne()

	select {
	case timedOut := <-done:
		assert.False(t, timedOut)
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestCondWaitTimesOut(t *testing.T) {
	m := NewMutex(0)
	c := NewKcond()
	m.Lock(1)
	timedOut := c.Wait(m, 1, 10*time.Millisecond)
	assert.True(t, timedOut)
	assert.Equal(t, int64(1), m.Owner(), "wait must relock the mutex before returning")
	m.Unlock(1)
}

func TestCondSignalAllWakesEveryone(t *testing.T) {
	m := NewMutex(0)
	c := NewKcond()
	const n = 8
	results := make(chan bool, n)

	for i := 0; i < n; i++ {
		go func(id int) {
			m.Lock(int64(id + 1))
			results <- c.Wait(m, int64(id+1), 0)
			m.Unlock(int64(id + 1))
		}(i)
	}
	for c.WaiterCount() != n {
		time.Sleep(time.Millisecond)
	}
	c.SignalAll()

	for i := 0; i < n; i++ {
		select {
		case timedOut := <-results:
			require.False(t, timedOut)
		case <-time.After(time.Second):
			t.Fatal("not all waiters were woken by SignalAll")
		}
	}
}
