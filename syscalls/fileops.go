package syscalls

import (
	"strings"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/signal"
	"github.com/tilck-go/tilck/usercopy"
	"github.com/tilck-go/tilck/vfs"
	"github.com/tilck-go/tilck/vfs/ramfs"
)

func (t *Table) registerFileOps() {
	t.Register(SysRead, sysRead)
	t.Register(SysWrite, sysWrite)
	t.Register(SysOpen, sysOpen)
	t.Register(SysClose, sysClose)
	t.Register(SysLseek, sysLseek)
	t.Register(SysDup, sysDup)
	t.Register(SysDup2, sysDup2)
	t.Register(SysFcntl, sysFcntl)
	t.Register(SysStat, sysStat)
	t.Register(SysFstat, sysFstat)
	t.Register(SysIoctl, sysIoctl)
	t.Register(SysPipe, sysPipe)
}

func sysRead(ctx *Context, args [6]int64) (int64, error) {
	fd, userBuf, count := int(args[0]), pagedir.VPN(args[1]), int(args[2])
	h, err := ctx.Proc.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, count)
	n, err := h.Read(buf)
	if err != nil {
		return 0, err
	}
	if err := usercopy.CopyToUser(ctx.Space, userBuf, buf[:n]); err != nil {
		return 0, err
	}
	return int64(n), nil
}

func sysWrite(ctx *Context, args [6]int64) (int64, error) {
	fd, userBuf, count := int(args[0]), pagedir.VPN(args[1]), int(args[2])
	h, err := ctx.Proc.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, count)
	if err := usercopy.CopyFromUser(ctx.Space, userBuf, buf); err != nil {
		return 0, err
	}
	n, err := h.Write(buf)
	if err != nil {
		if err == kerr.EPIPE {
			ctx.Task.Sig.Raise(signal.SIGPIPE)
		}
		return int64(n), err
	}
	return int64(n), nil
}

// sysPipe implements pipe()/pipe2(): spec.md §6. fds[0] is the read end,
// fds[1] the write end, written to userFDs in that order as two uint32s.
func sysPipe(ctx *Context, args [6]int64) (int64, error) {
	userFDs := pagedir.VPN(args[0])

	r, w := ramfs.NewPipe()
	rfd := ctx.Proc.FDs.Install(r, false)
	wfd := ctx.Proc.FDs.Install(w, false)

	buf := make([]byte, 8)
	putU32(buf[0:], uint32(rfd))
	putU32(buf[4:], uint32(wfd))
	if err := usercopy.CopyToUser(ctx.Space, userFDs, buf); err != nil {
		ctx.Proc.FDs.Close(rfd)
		ctx.Proc.FDs.Close(wfd)
		return 0, err
	}
	return 0, nil
}

func putU32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func sysOpen(ctx *Context, args [6]int64) (int64, error) {
	userPath := pagedir.VPN(args[0])
	flags := vfs.OpenFlags(args[1])
	mode := uint32(args[2])

	path, err := usercopy.CopyStringFromUser(ctx.Space, userPath, 4096)
	if err != nil {
		return 0, err
	}
	abs := path
	if len(abs) == 0 || abs[0] != '/' {
		abs = ctx.Proc.GetCwd() + "/" + path
	}

	rp, err := vfs.Resolve(ctx.Mount, abs, flags.AccMode() != vfs.ORdonly, true)
	if err == kerr.ENOENT && flags.Has(vfs.OCreat) {
		rp, err = createFile(ctx, abs, mode)
	} else if err == nil && flags.Has(vfs.OCreat) && flags.Has(vfs.OExcl) {
		rp.Release()
		return 0, kerr.EEXIST
	}
	if err != nil {
		return 0, err
	}
	defer rp.Release()

	h, err := rp.FS.Open(rp.Inode, flags)
	if err != nil {
		return 0, err
	}
	fd := ctx.Proc.FDs.Install(h, flags.Has(vfs.OCloexec))
	return int64(fd), nil
}

// createFile resolves abs's parent directory and creates the last
// component there, for open(O_CREAT) on a path that doesn't exist yet.
func createFile(ctx *Context, abs string, mode uint32) (*vfs.ResolvedPath, error) {
	idx := strings.LastIndex(abs, "/")
	dirPath, name := abs[:idx], abs[idx+1:]
	if dirPath == "" {
		dirPath = "/"
	}
	if name == "" {
		return nil, kerr.EISDIR
	}
	drp, err := vfs.Resolve(ctx.Mount, dirPath, true, true)
	if err != nil {
		return nil, err
	}
	defer drp.Release()

	n, err := drp.FS.Create(drp.Inode, name, mode)
	if err != nil {
		return nil, err
	}
	n.Lock(true)
	return &vfs.ResolvedPath{FS: drp.FS, Inode: n, Dir: drp.Inode, LastName: name, Exclusive: true}, nil
}

func sysClose(ctx *Context, args [6]int64) (int64, error) {
	return 0, ctx.Proc.FDs.Close(int(args[0]))
}

func sysLseek(ctx *Context, args [6]int64) (int64, error) {
	h, err := ctx.Proc.FDs.Get(int(args[0]))
	if err != nil {
		return 0, err
	}
	off, err := h.Seek(args[1], int(args[2]))
	if err != nil {
		return 0, err
	}
	return off, nil
}

func sysDup(ctx *Context, args [6]int64) (int64, error) {
	fd, err := ctx.Proc.FDs.Dup(int(args[0]))
	return int64(fd), err
}

func sysDup2(ctx *Context, args [6]int64) (int64, error) {
	if err := ctx.Proc.FDs.Dup2(int(args[0]), int(args[1])); err != nil {
		return 0, err
	}
	return args[1], nil
}

// Fcntl flag values this kernel supports, matching F_DUPFD/F_GETFD/F_SETFD
// from Linux's fcntl.h.
const (
	FDupfd = 0
	FGetfd = 1
	FSetfd = 2
)

func sysFcntl(ctx *Context, args [6]int64) (int64, error) {
	fd, cmd, arg := int(args[0]), int(args[1]), args[2]
	switch cmd {
	case FDupfd:
		newFd, err := ctx.Proc.FDs.Dup(fd)
		return int64(newFd), err
	case FGetfd:
		cloexec, err := ctx.Proc.FDs.Cloexec(fd)
		if err != nil {
			return 0, err
		}
		if cloexec {
			return 1, nil
		}
		return 0, nil
	case FSetfd:
		return 0, ctx.Proc.FDs.SetCloexec(fd, arg != 0)
	default:
		return 0, kerr.EINVAL
	}
}

func sysStat(ctx *Context, args [6]int64) (int64, error) {
	userPath, userStat := pagedir.VPN(args[0]), pagedir.VPN(args[1])
	path, err := usercopy.CopyStringFromUser(ctx.Space, userPath, 4096)
	if err != nil {
		return 0, err
	}
	abs := path
	if len(abs) == 0 || abs[0] != '/' {
		abs = ctx.Proc.GetCwd() + "/" + path
	}
	rp, err := vfs.Resolve(ctx.Mount, abs, false, true)
	if err != nil {
		return 0, err
	}
	defer rp.Release()
	st, err := rp.FS.Stat(rp.Inode)
	if err != nil {
		return 0, err
	}
	return 0, writeStatToUser(ctx, userStat, st)
}

func sysFstat(ctx *Context, args [6]int64) (int64, error) {
	fd, userStat := int(args[0]), pagedir.VPN(args[1])
	h, err := ctx.Proc.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	st, err := h.Stat()
	if err != nil {
		return 0, err
	}
	return 0, writeStatToUser(ctx, userStat, st)
}

// writeStatToUser serializes the fields a devshell program's `struct stat`
// would read, in the fixed field order spec.md §6 names.
func writeStatToUser(ctx *Context, userVA pagedir.VPN, st vfs.Stat) error {
	buf := make([]byte, 64)
	putU64(buf[0:], st.Dev)
	putU64(buf[8:], st.Ino)
	putU64(buf[16:], uint64(st.Mode))
	putU64(buf[24:], uint64(st.Nlink))
	putU64(buf[32:], st.Rdev)
	putU64(buf[40:], uint64(st.Size))
	return usercopy.CopyToUser(ctx.Space, userVA, buf)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func sysIoctl(ctx *Context, args [6]int64) (int64, error) {
	h, err := ctx.Proc.FDs.Get(int(args[0]))
	if err != nil {
		return 0, err
	}
	ret, err := h.Ioctl(uintptr(args[1]), uintptr(args[2]))
	return int64(ret), err
}
