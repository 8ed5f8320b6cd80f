package syscalls

import (
	"strings"

	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/usercopy"
	"github.com/tilck-go/tilck/vfs"
)

func (t *Table) registerDirOps() {
	t.Register(SysMkdir, sysMkdir)
	t.Register(SysRmdir, sysRmdir)
	t.Register(SysUnlink, sysUnlink)
	t.Register(SysRename, sysRename)
	t.Register(SysChmod, sysChmod)
	t.Register(SysGetdents64, sysGetdents64)
	t.Register(SysGetcwd, sysGetcwd)
	t.Register(SysChdir, sysChdir)
}

func splitParent(abs string) (dir, name string) {
	idx := strings.LastIndex(abs, "/")
	if idx <= 0 {
		return "/", abs[idx+1:]
	}
	return abs[:idx], abs[idx+1:]
}

func resolvedPath(ctx *Context, userPath pagedir.VPN) (string, error) {
	path, err := usercopy.CopyStringFromUser(ctx.Space, userPath, 4096)
	if err != nil {
		return "", err
	}
	if len(path) == 0 || path[0] != '/' {
		path = ctx.Proc.GetCwd() + "/" + path
	}
	return path, nil
}

func sysMkdir(ctx *Context, args [6]int64) (int64, error) {
	abs, err := resolvedPath(ctx, pagedir.VPN(args[0]))
	if err != nil {
		return 0, err
	}
	dir, name := splitParent(abs)
	rp, err := vfs.Resolve(ctx.Mount, dir, true, true)
	if err != nil {
		return 0, err
	}
	defer rp.Release()
	return 0, rp.FS.Mkdir(rp.Inode, name, uint32(args[1]))
}

func sysRmdir(ctx *Context, args [6]int64) (int64, error) {
	abs, err := resolvedPath(ctx, pagedir.VPN(args[0]))
	if err != nil {
		return 0, err
	}
	dir, name := splitParent(abs)
	rp, err := vfs.Resolve(ctx.Mount, dir, true, true)
	if err != nil {
		return 0, err
	}
	defer rp.Release()
	return 0, rp.FS.Rmdir(rp.Inode, name)
}

func sysUnlink(ctx *Context, args [6]int64) (int64, error) {
	abs, err := resolvedPath(ctx, pagedir.VPN(args[0]))
	if err != nil {
		return 0, err
	}
	dir, name := splitParent(abs)
	rp, err := vfs.Resolve(ctx.Mount, dir, true, true)
	if err != nil {
		return 0, err
	}
	defer rp.Release()
	return 0, rp.FS.Unlink(rp.Inode, name)
}

func sysRename(ctx *Context, args [6]int64) (int64, error) {
	oldAbs, err := resolvedPath(ctx, pagedir.VPN(args[0]))
	if err != nil {
		return 0, err
	}
	newAbs, err := resolvedPath(ctx, pagedir.VPN(args[1]))
	if err != nil {
		return 0, err
	}
	oldDir, oldName := splitParent(oldAbs)
	newDir, newName := splitParent(newAbs)

	orp, err := vfs.Resolve(ctx.Mount, oldDir, true, true)
	if err != nil {
		return 0, err
	}
	defer orp.Release()

	if newDir == oldDir {
		return 0, orp.FS.Rename(orp.Inode, oldName, orp.Inode, newName)
	}
	nrp, err := vfs.Resolve(ctx.Mount, newDir, true, true)
	if err != nil {
		return 0, err
	}
	defer nrp.Release()
	if orp.FS != nrp.FS {
		return 0, kerr.EXDEV
	}
	return 0, orp.FS.Rename(orp.Inode, oldName, nrp.Inode, newName)
}

func sysChmod(ctx *Context, args [6]int64) (int64, error) {
	abs, err := resolvedPath(ctx, pagedir.VPN(args[0]))
	if err != nil {
		return 0, err
	}
	rp, err := vfs.Resolve(ctx.Mount, abs, true, true)
	if err != nil {
		return 0, err
	}
	defer rp.Release()
	return 0, rp.FS.Chmod(rp.Inode, uint32(args[1]))
}

func sysGetdents64(ctx *Context, args [6]int64) (int64, error) {
	fd, userBuf, count := int(args[0]), pagedir.VPN(args[1]), int(args[2])
	h, err := ctx.Proc.FDs.Get(fd)
	if err != nil {
		return 0, err
	}
	// linux_dirent64 is variable-length on the wire; this substrate uses a
	// fixed 256-byte record (a 17-byte ino/off/type header, then the name
	// truncated to 239 bytes) since no
	// devshell program parses the real packed layout directly.
	const recSize = 256
	maxEntries := count / recSize
	if maxEntries == 0 {
		return 0, kerr.EINVAL
	}
	entries := make([]vfs.DirEntry, maxEntries)
	n, err := h.GetDents(entries)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, n*recSize)
	for i := 0; i < n; i++ {
		e := entries[i]
		rec := buf[i*recSize : (i+1)*recSize]
		putU64(rec[0:], e.Ino)
		putU64(rec[8:], uint64(e.Off))
		rec[16] = byte(e.Type)
		copy(rec[17:], e.Name)
	}
	if err := usercopy.CopyToUser(ctx.Space, userBuf, buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func sysGetcwd(ctx *Context, args [6]int64) (int64, error) {
	userBuf, size := pagedir.VPN(args[0]), int(args[1])
	cwd := ctx.Proc.GetCwd()
	if len(cwd)+1 > size {
		return 0, kerr.ERANGE
	}
	buf := make([]byte, len(cwd)+1)
	copy(buf, cwd)
	if err := usercopy.CopyToUser(ctx.Space, userBuf, buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func sysChdir(ctx *Context, args [6]int64) (int64, error) {
	abs, err := resolvedPath(ctx, pagedir.VPN(args[0]))
	if err != nil {
		return 0, err
	}
	rp, err := vfs.Resolve(ctx.Mount, abs, false, true)
	if err != nil {
		return 0, err
	}
	defer rp.Release()
	if rp.Inode.Type != vfs.TypeDir {
		return 0, kerr.ENOTDIR
	}
	ctx.Proc.SetCwd(abs)
	return 0, nil
}
