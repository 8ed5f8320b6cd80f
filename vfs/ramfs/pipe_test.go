package ramfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/kerr"
)

// TestPipeOrderingAndSigpipe is spec.md §8 invariant 5: writes and reads
// interleave in order without loss, and a read from an empty pipe with no
// writers left returns 0. The write-with-no-readers EPIPE case is checked
// by TestPipeWriteWithNoReadersRaisesEPIPE.
func TestPipeOrderingAndSigpipe(t *testing.T) {
	r, w := NewPipe()

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = w.Write([]byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	buf := make([]byte, 32)
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))

	require.NoError(t, w.Close())
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "read from an empty pipe with no writers returns 0")

	require.NoError(t, r.Close())
}

func TestPipeWriteWithNoReadersRaisesEPIPE(t *testing.T) {
	r, w := NewPipe()
	require.NoError(t, r.Close())

	n, err := w.Write([]byte("x"))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, kerr.EPIPE)
}

func TestPipeReadBlocksUntilWriteArrives(t *testing.T) {
	r, w := NewPipe()
	defer w.Close()
	defer r.Close()

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := r.Read(buf)
		require.NoError(t, err)
		done <- buf[:n]
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := w.Write([]byte("late"))
	require.NoError(t, err)

	select {
	case got := <-done:
		assert.Equal(t, "late", string(got))
	case <-time.After(time.Second):
		t.Fatal("pipe read never woke for the write")
	}
}

func TestPipeDupSharesReaderCount(t *testing.T) {
	r, w := NewPipe()
	r2, err := r.Dup()
	require.NoError(t, err)

	require.NoError(t, r.Close())
	// r2 still holds a reader reference, so the write must still succeed.
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	require.NoError(t, r2.Close())
	_, err = w.Write([]byte("y"))
	assert.ErrorIs(t, err, kerr.EPIPE)
}
