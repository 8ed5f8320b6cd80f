package tty

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilck-go/tilck/kerr"
)

func TestLineDisciplineBuffersUntilNewline(t *testing.T) {
	ld := NewLineDiscipline()
	ld.Feed([]byte("hel"))
	assert.False(t, ld.Ready())
	ld.Feed([]byte("lo\n"))
	require.True(t, ld.Ready())
	assert.Equal(t, "hello\n", string(ld.ReadLine()))
}

func TestLineDisciplineRawModePassesThroughImmediately(t *testing.T) {
	ld := NewLineDiscipline()
	ld.SetRaw(true)
	ld.Feed([]byte{'x'})
	require.True(t, ld.Ready())
	assert.Equal(t, []byte{'x'}, ld.ReadLine())
}

func TestConsoleWriteReturnsByteCount(t *testing.T) {
	c := NewConsole()
	n, err := c.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestConsoleIoctlUnknownCommandIsENOTTY(t *testing.T) {
	c := NewConsole()
	_, err := c.Ioctl(0xdead, 0)
	assert.ErrorIs(t, err, kerr.ENOTTY)
}

func TestConsoleIoctlTCSETSTogglesRawMode(t *testing.T) {
	c := NewConsole()
	_, err := c.Ioctl(TCSETS, 1)
	require.NoError(t, err)
	c.ld.Feed([]byte{'a'})
	assert.True(t, c.ld.Ready())
}

func TestStyleForSGRAppliesBoldAndColor(t *testing.T) {
	style := styleForSGR(1, 31)
	fg, _, attrs := style.Decompose()
	assert.Equal(t, tcell.ColorRed, fg)
	assert.NotZero(t, attrs&tcell.AttrBold)
}
