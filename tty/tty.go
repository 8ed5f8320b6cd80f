// Package tty implements a console/tty device: a line-disciplined
// character stream, supplementing spec.md §6's device surface the way a
// real kernel's tty layer backs /dev/console and /dev/tty. Output goes
// through go-colorable unmodified: ANSI CSI escape sequences are passed
// to the host as-is and are not interpreted here. tcell
// (github.com/gdamore/tcell/v2) supplies only the Style values that
// styleForSGR builds.
package tty

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	colorable "github.com/mattn/go-colorable"
	"golang.org/x/term"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/vfs"
)

// LineDiscipline buffers input a line at a time (canonical mode) or
// passes bytes straight through (raw mode), per spec.md §4.9's tty
// device model.
type LineDiscipline struct {
	mu      sync.Mutex
	raw     bool
	current []byte
	lines   [][]byte
	notEmpty chan struct{}
}

// NewLineDiscipline returns a canonical-mode line discipline.
func NewLineDiscipline() *LineDiscipline {
	return &LineDiscipline{notEmpty: make(chan struct{}, 1)}
}

// SetRaw toggles between canonical (line-buffered) and raw (byte-at-a-time)
// input delivery, the ioctl(TCSETS) surface a devshell's termios calls
// would drive.
func (ld *LineDiscipline) SetRaw(raw bool) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	ld.raw = raw
}

// Feed delivers input bytes from the keyboard/host terminal into the
// discipline, completing a line on '\n' in canonical mode.
func (ld *LineDiscipline) Feed(b []byte) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	if ld.raw {
		ld.lines = append(ld.lines, append([]byte(nil), b...))
		ld.signal()
		return
	}
	for _, c := range b {
		ld.current = append(ld.current, c)
		if c == '\n' {
			ld.lines = append(ld.lines, ld.current)
			ld.current = nil
			ld.signal()
		}
	}
}

func (ld *LineDiscipline) signal() {
	select {
	case ld.notEmpty <- struct{}{}:
	default:
	}
}

// ReadLine pops the oldest completed line (or raw chunk), blocking until
// one is available.
func (ld *LineDiscipline) ReadLine() []byte {
	for {
		ld.mu.Lock()
		if len(ld.lines) > 0 {
			line := ld.lines[0]
			ld.lines = ld.lines[1:]
			ld.mu.Unlock()
			return line
		}
		ld.mu.Unlock()
		<-ld.notEmpty
	}
}

// Ready reports whether a line is available without blocking.
func (ld *LineDiscipline) Ready() bool {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return len(ld.lines) > 0
}

// Console is the /dev/console handle: writes go to the host's stdout
// unmodified, so color/cursor escape sequences a devshell program emits
// reach the host terminal as-is. The console does not parse them and
// keeps no cursor or window-size state.
type Console struct {
	vfs.BaseHandle
	ld  *LineDiscipline
	out *csiWriter
}

// NewConsole returns a console that writes to the host's stdout through
// go-colorable, with a fresh line discipline for input.
func NewConsole() *Console {
	return &Console{
		ld:  NewLineDiscipline(),
		out: newCSIWriter(colorable.NewColorableStdout()),
	}
}

func (c *Console) Read(buf []byte) (int, error) {
	line := c.ld.ReadLine()
	return copy(buf, line), nil
}

func (c *Console) Write(buf []byte) (int, error) {
	return c.out.Write(buf)
}

func (c *Console) ReadReady() bool  { return c.ld.Ready() }
func (c *Console) WriteReady() bool { return true }

func (c *Console) Ioctl(cmd uintptr, arg uintptr) (uintptr, error) {
	switch cmd {
	case TCSETS:
		c.ld.SetRaw(arg != 0)
		return 0, nil
	case TCGETS:
		return 0, nil
	default:
		return 0, kerr.ENOTTY
	}
}

func (c *Console) Dup() (vfs.Handle, error) { return c, nil }

// SyncHostTTY puts the real host terminal behind fd into raw mode if this
// console's own line discipline is in raw mode at the time of the call,
// and returns a restore func the caller defers. Later TCSETS ioctls do not
// change the host terminal. On a non-tty fd (e.g. piped stdin under
// `go test`), or while the line discipline is canonical, it is a no-op.
func (c *Console) SyncHostTTY(fd int) (restore func(), err error) {
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	if !c.ld.raw {
		return func() {}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { term.Restore(fd, state) }, nil
}

// Ioctl command numbers this tty supports, aliased from the values a
// devshell's termios.h would use.
const (
	TCGETS = 0x5401
	TCSETS = 0x5402
)

// csiWriter passes bytes straight through to an underlying
// colorable-wrapped writer; it does not parse or validate CSI sequences.
type csiWriter struct {
	w interface {
		Write([]byte) (int, error)
	}
}

func newCSIWriter(w interface{ Write([]byte) (int, error) }) *csiWriter {
	return &csiWriter{w: w}
}

func (c *csiWriter) Write(buf []byte) (int, error) {
	return c.w.Write(buf)
}

// styleForSGR resolves a subset of SGR (Select Graphic Rendition)
// parameters (bold, reverse, red and green foreground) to a tcell.Style;
// other parameters are ignored. Console writes do not use it.
func styleForSGR(params ...int) tcell.Style {
	style := tcell.StyleDefault
	for _, p := range params {
		switch p {
		case 1:
			style = style.Bold(true)
		case 7:
			style = style.Reverse(true)
		case 31:
			style = style.Foreground(tcell.ColorRed)
		case 32:
			style = style.Foreground(tcell.ColorGreen)
		}
	}
	return style
}
