package syscalls

import (
	"time"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/sched/waitobj"
	"github.com/tilck-go/tilck/usercopy"
	"github.com/tilck-go/tilck/vfs"
)

func (t *Table) registerMiscOps() {
	t.Register(SysPoll, sysPoll)
	t.Register(SysSelect, sysSelect)
	t.Register(SysGettimeofday, sysGettimeofday)
}

// PollFlags mirror Linux's POLLIN/POLLOUT/POLLERR bits.
const (
	PollIn  = 0x001
	PollOut = 0x004
	PollErr = 0x008
)

// pollfd mirrors the wire struct pollfd: a 4-byte fd followed by the
// 2-byte requested and 2-byte returned event masks, packed contiguously.
const pollfdSize = 8

// timeoutChan turns poll()'s timeout_ms argument into a MultiWaiter done
// channel: negative blocks forever (nil), zero returns immediately
// (already-closed), positive fires after that many milliseconds — real
// wall-clock time, independent of the simulated timer wheel, since a
// caller blocked in poll() is waiting on an actual clock per spec.md §8
// S5.
func timeoutChan(ms int64) <-chan struct{} {
	if ms < 0 {
		return nil
	}
	ch := make(chan struct{})
	if ms == 0 {
		close(ch)
		return ch
	}
	go func() {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		close(ch)
	}()
	return ch
}

// sysPoll implements poll() over the fds packed at userFds, per spec.md
// §6/§4.4: each ready fd's revents is filled in and the count of ready
// fds is returned. Handles whose readiness can change after entry (pipes,
// via vfs.Waitable) are waited on through their real wait objects, so a
// write arriving mid-poll wakes it instead of requiring it to already be
// ready at the call; plain handles are always trivially ready and use a
// one-shot snapshot object.
func sysPoll(ctx *Context, args [6]int64) (int64, error) {
	userFds, nfds, timeoutMs := pagedir.VPN(args[0]), int(args[1]), args[2]
	if nfds == 0 {
		return 0, nil
	}
	buf := make([]byte, nfds*pollfdSize)
	if err := usercopy.CopyFromUser(ctx.Space, userFds, buf); err != nil {
		return 0, err
	}

	fds := make([]int, nfds)
	events := make([]int16, nfds)
	handles := make([]vfs.Handle, nfds)
	for i := 0; i < nfds; i++ {
		rec := buf[i*pollfdSize:]
		fd := int(int32(rec[0]) | int32(rec[1])<<8 | int32(rec[2])<<16 | int32(rec[3])<<24)
		ev := int16(rec[4]) | int16(rec[5])<<8
		fds[i] = fd
		events[i] = ev
		if h, err := ctx.Proc.FDs.Get(fd); err == nil {
			handles[i] = h
		}
	}

	var objs []*waitobj.WaitObj
	for i := 0; i < nfds; i++ {
		h := handles[i]
		if h == nil {
			continue
		}
		if w, ok := h.(vfs.Waitable); ok {
			if events[i]&PollIn != 0 {
				if ro := w.ReadWaitObj(); ro != nil {
					objs = append(objs, ro)
				}
			}
			if events[i]&PollOut != 0 {
				if wo := w.WriteWaitObj(); wo != nil {
					objs = append(objs, wo)
				}
			}
			continue
		}
		obj := waitobj.New(waitobj.TypeKcond)
		if (events[i]&PollIn != 0 && h.ReadReady()) || (events[i]&PollOut != 0 && h.WriteReady()) {
			obj.Signal()
		}
		objs = append(objs, obj)
	}

	if len(objs) > 0 {
		waitobj.NewMultiWaiter(objs...).WaitAny(timeoutChan(timeoutMs))
	}

	count := 0
	for i := 0; i < nfds; i++ {
		rec := buf[i*pollfdSize:]
		var revents int16
		if h := handles[i]; h != nil {
			if events[i]&PollIn != 0 && h.ReadReady() {
				revents |= PollIn
			}
			if events[i]&PollOut != 0 && h.WriteReady() {
				revents |= PollOut
			}
		}
		if revents != 0 {
			count++
		}
		rec[6] = byte(revents)
		rec[7] = byte(revents >> 8)
	}
	if err := usercopy.CopyToUser(ctx.Space, userFds, buf); err != nil {
		return 0, err
	}
	return int64(count), nil
}

// sysSelect is unsupported in this substrate: poll() covers every
// devshell demo's needs, and select()'s fd_set bitmap ABI adds nothing
// poll()'s richer interface doesn't already express, so it returns
// ENOSYS rather than duplicating sysPoll's logic behind a second wire
// format.
func sysSelect(ctx *Context, args [6]int64) (int64, error) {
	return 0, kerr.ENOSYS
}

func sysGettimeofday(ctx *Context, args [6]int64) (int64, error) {
	userTv := pagedir.VPN(args[0])
	if userTv == 0 {
		return 0, nil
	}
	buf := make([]byte, 16)
	sec := ctx.Procs.Clock()
	putU64(buf[0:], uint64(sec))
	if err := usercopy.CopyToUser(ctx.Space, userTv, buf); err != nil {
		return 0, err
	}
	return 0, nil
}
