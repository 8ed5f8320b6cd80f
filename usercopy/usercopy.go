// Package usercopy copies bytes between kernel buffers and a simulated
// user address space, where a bad user pointer must fail the syscall with
// EFAULT instead of crashing the kernel, per spec.md §4.10. A fault is
// raised as a panic and recovered inside each copy function.
package usercopy

import (
	"github.com/tilck-go/tilck/kerr"
	"github.com/tilck-go/tilck/mm/pagedir"
	"github.com/tilck-go/tilck/mm/physalloc"
)

// Space is a simulated user address space view used by CopyFromUser /
// CopyToUser: the page directory that translates addresses, and the
// physical memory backing those pages.
type Space struct {
	PageDir *pagedir.PageDir
	Mem     *physalloc.Memory
}

// pageFault is the panic value translate raises on any unmapped or
// unwritable access; recovered only by the three copy entry points below so
// a genuine programmer bug elsewhere still crashes loudly.
type pageFault struct{ err kerr.Errno }

// translate resolves va to the physical frame backing it and that page's
// flags, panicking with a pageFault if va isn't mapped (or, for writes, isn't
// writable) — the fault path spec.md §4.10 says a real kernel would
// service via its page-fault handler, here modeled directly as the
// condition that turns into EFAULT.
func translate(sp *Space, va pagedir.VPN, write bool) (physalloc.Frame, pagedir.Flags) {
	frame, flags, ok := sp.PageDir.GetMapping(va)
	if !ok {
		panic(pageFault{kerr.EFAULT})
	}
	if write && flags&pagedir.FlagWrite == 0 && flags&pagedir.FlagCoW == 0 {
		panic(pageFault{kerr.EFAULT})
	}
	return frame, flags
}

// CopyFromUser copies len(dst) bytes starting at userVA into dst, as
// copy_from_user() would. It returns EFAULT, leaving dst unmodified, if any
// page in the range is unmapped.
func CopyFromUser(sp *Space, userVA pagedir.VPN, dst []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pf, ok := r.(pageFault)
			kerr.Assert(ok, "usercopy: unexpected panic %v", r)
			err = pf.err
		}
	}()
	tmp := make([]byte, len(dst))
	off := 0
	page := userVA
	for off < len(dst) {
		frame, _ := translate(sp, page, false)
		data := sp.Mem.Read(frame)
		n := copy(tmp[off:], data)
		off += n
		page++
	}
	copy(dst, tmp)
	return nil
}

// CopyToUser copies src into the user address space starting at userVA, as
// copy_to_user() would.
func CopyToUser(sp *Space, userVA pagedir.VPN, src []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pf, ok := r.(pageFault)
			kerr.Assert(ok, "usercopy: unexpected panic %v", r)
			err = pf.err
		}
	}()
	off := 0
	page := userVA
	for off < len(src) {
		frame, _ := translate(sp, page, true)
		buf := sp.Mem.Read(frame)
		n := copy(buf, src[off:])
		sp.Mem.Write(frame, buf)
		off += n
		page++
	}
	return nil
}

// CopyStringFromUser reads a NUL-terminated string starting at userVA,
// bounded by maxLen (ENAMETOOLONG beyond that), as strncpy_from_user()
// would for path arguments.
func CopyStringFromUser(sp *Space, userVA pagedir.VPN, maxLen int) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pf, ok := r.(pageFault)
			kerr.Assert(ok, "usercopy: unexpected panic %v", r)
			err = pf.err
		}
	}()
	buf := make([]byte, 0, 64)
	page := userVA
	for len(buf) < maxLen {
		frame, _ := translate(sp, page, false)
		data := sp.Mem.Read(frame)
		for _, b := range data {
			if b == 0 {
				return string(buf), nil
			}
			buf = append(buf, b)
			if len(buf) >= maxLen {
				return "", kerr.ENAMETOOLONG
			}
		}
		page++
	}
	return "", kerr.ENAMETOOLONG
}
