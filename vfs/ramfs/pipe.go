package ramfs

import (
	"sync"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/sched/waitobj"
	"github.com/tilck-go/tilck/vfs"
)

// pipeCapacity mirrors Linux's default pipe buffer size (64 KiB), the
// bound spec.md §8 invariant 5 calls out ("up to the pipe buffer
// capacity").
const pipeCapacity = 64 * 1024

// pipeBuffer is the anonymous, unnamed ring both ends of a pipe() share:
// no inode, no FS tree entry, just a bounded byte queue plus the
// reader/writer reference counts that decide EOF vs SIGPIPE.
type pipeBuffer struct {
	mu      sync.Mutex
	buf     []byte
	readers int
	writers int

	readable *waitobj.WaitObj // ready when buf is non-empty or writers == 0
	writable *waitobj.WaitObj // ready when buf has room or readers == 0
}

// NewPipe returns the read and write ends of a fresh pipe, per spec.md
// §6's pipe()/pipe2().
func NewPipe() (vfs.Handle, vfs.Handle) {
	pb := &pipeBuffer{
		readers:  1,
		writers:  1,
		readable: waitobj.New(waitobj.TypeKcond),
		writable: waitobj.New(waitobj.TypeKcond),
	}
	pb.writable.Signal() // an empty buffer has room
	return &pipeReadHandle{pb: pb}, &pipeWriteHandle{pb: pb}
}

type pipeReadHandle struct {
	vfs.BaseHandle
	pb *pipeBuffer
}

// Read implements read(pipe_read_fd, ...), per spec.md §8 invariant 5:
// bytes come back in write order; an empty pipe with no writers left
// returns 0 (EOF) rather than blocking forever.
func (h *pipeReadHandle) Read(buf []byte) (int, error) {
	pb := h.pb
	for {
		pb.mu.Lock()
		if len(pb.buf) > 0 {
			n := copy(buf, pb.buf)
			pb.buf = pb.buf[n:]
			if len(pb.buf) == 0 {
				pb.readable.Reset()
			}
			pb.writable.Signal()
			pb.mu.Unlock()
			return n, nil
		}
		noWriters := pb.writers == 0
		pb.mu.Unlock()
		if noWriters {
			return 0, nil
		}
		if h.Flags().Has(vfs.ONonblock) {
			return 0, kerr.EAGAIN
		}
		waitobj.NewMultiWaiter(pb.readable).WaitAny(nil)
	}
}

func (h *pipeReadHandle) ReadReady() bool {
	pb := h.pb
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return len(pb.buf) > 0 || pb.writers == 0
}

func (h *pipeReadHandle) WriteReady() bool { return false }

func (h *pipeReadHandle) ReadWaitObj() *waitobj.WaitObj  { return h.pb.readable }
func (h *pipeReadHandle) WriteWaitObj() *waitobj.WaitObj { return nil }

func (h *pipeReadHandle) Dup() (vfs.Handle, error) {
	pb := h.pb
	pb.mu.Lock()
	pb.readers++
	pb.mu.Unlock()
	return &pipeReadHandle{pb: pb, BaseHandle: h.BaseHandle}, nil
}

func (h *pipeReadHandle) Close() error {
	pb := h.pb
	pb.mu.Lock()
	pb.readers--
	last := pb.readers == 0
	pb.mu.Unlock()
	if last {
		// Wake any writer blocked on room so it observes EPIPE instead of
		// waiting for space that will never open up again.
		pb.writable.Signal()
	}
	return nil
}

type pipeWriteHandle struct {
	vfs.BaseHandle
	pb *pipeBuffer
}

// Write implements write(pipe_write_fd, ...), per spec.md §8 invariant 5:
// writing to a pipe with no readers left raises SIGPIPE (via the EPIPE
// error sysWrite translates) and returns -EPIPE without buffering any of
// the write.
func (h *pipeWriteHandle) Write(buf []byte) (int, error) {
	pb := h.pb
	total := 0
	for total < len(buf) {
		pb.mu.Lock()
		if pb.readers == 0 {
			pb.mu.Unlock()
			if total > 0 {
				return total, nil
			}
			return 0, kerr.EPIPE
		}
		free := pipeCapacity - len(pb.buf)
		if free == 0 {
			pb.mu.Unlock()
			if h.Flags().Has(vfs.ONonblock) {
				if total > 0 {
					return total, nil
				}
				return 0, kerr.EAGAIN
			}
			waitobj.NewMultiWaiter(pb.writable).WaitAny(nil)
			continue
		}
		n := free
		if remaining := len(buf) - total; remaining < n {
			n = remaining
		}
		pb.buf = append(pb.buf, buf[total:total+n]...)
		total += n
		pb.readable.Signal()
		if len(pb.buf) == pipeCapacity {
			pb.writable.Reset()
		}
		pb.mu.Unlock()
	}
	return total, nil
}

func (h *pipeWriteHandle) ReadReady() bool { return false }

func (h *pipeWriteHandle) WriteReady() bool {
	pb := h.pb
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return len(pb.buf) < pipeCapacity || pb.readers == 0
}

func (h *pipeWriteHandle) ReadWaitObj() *waitobj.WaitObj  { return nil }
func (h *pipeWriteHandle) WriteWaitObj() *waitobj.WaitObj { return h.pb.writable }

func (h *pipeWriteHandle) Dup() (vfs.Handle, error) {
	pb := h.pb
	pb.mu.Lock()
	pb.writers++
	pb.mu.Unlock()
	return &pipeWriteHandle{pb: pb, BaseHandle: h.BaseHandle}, nil
}

func (h *pipeWriteHandle) Close() error {
	pb := h.pb
	pb.mu.Lock()
	pb.writers--
	last := pb.writers == 0
	pb.mu.Unlock()
	if last {
		// Wake any reader blocked on data so it observes EOF (read()
		// returning 0) instead of waiting for bytes that will never come.
		pb.readable.Signal()
	}
	return nil
}
