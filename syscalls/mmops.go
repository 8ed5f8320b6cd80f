package syscalls

import (
	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
)

func (t *Table) registerMMOps() {
	t.Register(SysMmap, sysMmap)
	t.Register(SysMunmap, sysMunmap)
	t.Register(SysBrk, sysBrk)
}

// Mmap protection/flag bits this kernel recognizes, matching Linux's
// PROT_*/MAP_* constants used by mmap_pgoff().
const (
	ProtRead  = 1
	ProtWrite = 2
	MapAnonymous = 0x20
)

// sysMmap implements the anonymous-mapping subset of mmap_pgoff() spec.md
// §6 requires: file-backed mmap is out of this kernel's scope (no
// page-cache layer), matching spec.md's Non-goals.
func sysMmap(ctx *Context, args [6]int64) (int64, error) {
	addr, length, prot, flags := pagedir.VPN(args[0]), int(args[1]), int(args[2]), int(args[3])
	if flags&MapAnonymous == 0 {
		return 0, kerr.ENOSYS
	}
	pages := (length + pagedir.PageSize - 1) / pagedir.PageSize
	pdFlags := pagedir.FlagUser
	if prot&ProtWrite != 0 {
		pdFlags |= pagedir.FlagWrite
	}

	start := addr
	if start == 0 {
		start = ctx.Proc.PageDir.NextFreeVPN()
	}
	for i := 0; i < pages; i++ {
		frame, ok := ctx.Alloc.AllocFrame()
		if !ok {
			return 0, kerr.ENOMEM
		}
		if err := ctx.Proc.PageDir.MapPage(start+pagedir.VPN(i), frame, pdFlags); err != nil {
			return 0, err
		}
	}
	return int64(start), nil
}

func sysMunmap(ctx *Context, args [6]int64) (int64, error) {
	addr, length := pagedir.VPN(args[0]), int(args[1])
	pages := (length + pagedir.PageSize - 1) / pagedir.PageSize
	for i := 0; i < pages; i++ {
		if frame, _, ok := ctx.Proc.PageDir.GetMapping(addr + pagedir.VPN(i)); ok {
			ctx.Proc.PageDir.UnmapPage(addr + pagedir.VPN(i))
			ctx.Alloc.FreeFrame(frame)
		}
	}
	return 0, nil
}

// sysBrk extends or reports the process's heap-end pointer. Per spec.md
// §6, brk(0) queries the current break; a value above the current break
// grows it, backing each newly-mapped page with a fresh anonymous frame. A
// value at or below the current break leaves the break unchanged and
// returns it: the heap never shrinks and no pages are unmapped.
func sysBrk(ctx *Context, args [6]int64) (int64, error) {
	requested := pagedir.VPN(args[0])
	if requested == 0 {
		return int64(ctx.Proc.PageDir.Brk()), nil
	}
	cur := ctx.Proc.PageDir.Brk()
	if requested <= cur {
		return int64(cur), nil
	}
	for va := cur; va < requested; va++ {
		if ctx.Proc.PageDir.IsMapped(va) {
			continue
		}
		frame, ok := ctx.Alloc.AllocFrame()
		if !ok {
			return int64(cur), kerr.ENOMEM
		}
		if err := ctx.Proc.PageDir.MapPage(va, frame, pagedir.FlagUser|pagedir.FlagWrite); err != nil {
			return int64(cur), err
		}
	}
	ctx.Proc.PageDir.SetBrk(requested)
	return int64(requested), nil
}
