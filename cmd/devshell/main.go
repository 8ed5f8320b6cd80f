// Command devshell is an interactive front-end to the simulated kernel,
// letting a developer poke at vfs/process state from a shell the way
// rclone's `rclone rc` / interactive backends let a developer probe a
// running remote without writing Go.
//
// It is not a userspace program running *under* the kernel's syscall
// ABI (that would require simulating user-page-backed argument passing
// for every command); instead it drives the same vfs/process packages
// the syscall layer sits on top of, directly, as a trusted operator
// tool — the devshell equivalent of Tilck's own kernel debug console.
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tilck-go/tilck/boot"
	"github.com/tilck-go/tilck/kconfig"
	"github.com/tilck-go/tilck/vfs"
)

func main() {
	cfg := kconfig.Default()

	root := &cobra.Command{
		Use:   "devshell",
		Short: "interactive shell over the simulated kernel's vfs and process state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cfg)
		},
	}
	kconfig.BindFlags(root.Flags(), &cfg)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runShell(cfg kconfig.Config) error {
	k, err := boot.Boot(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("devshell: booted, init pid=%d, cwd=%s\n", k.Root.Proc.PID, k.Root.Proc.GetCwd())

	restore, err := k.TTY.SyncHostTTY(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("devshell: putting host tty in raw mode: %w", err)
	}
	defer restore()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			dispatch(k, line)
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func dispatch(k *boot.Kernel, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "ls":
		cmdLs(k, args)
	case "mkdir":
		cmdMkdir(k, args)
	case "write":
		cmdWrite(k, args)
	case "cat":
		cmdCat(k, args)
	case "ps":
		cmdPs(k)
	case "fork":
		cmdFork(k)
	case "trace":
		cmdTrace(k)
	case "exit", "quit":
		os.Exit(0)
	default:
		fmt.Printf("devshell: unknown command %q\n", cmd)
	}
}

func cmdLs(k *boot.Kernel, args []string) {
	path := k.Root.Proc.GetCwd()
	if len(args) > 0 {
		path = args[0]
	}
	rp, err := vfs.Resolve(k.Mount, path, false, true)
	if err != nil {
		fmt.Println("ls:", err)
		return
	}
	defer rp.Release()

	h, err := rp.FS.Open(rp.Inode, vfs.ORdonly)
	if err != nil {
		fmt.Println("ls:", err)
		return
	}
	defer h.Close()

	buf := make([]vfs.DirEntry, 64)
	n, err := h.GetDents(buf)
	if err != nil {
		fmt.Println("ls:", err)
		return
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = buf[i].Name
	}
	sort.Strings(names)
	fmt.Println(strings.Join(names, "  "))
}

func cmdMkdir(k *boot.Kernel, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: mkdir <path>")
		return
	}
	dir, name := splitPath(join(k, args[0]))
	rp, err := vfs.Resolve(k.Mount, dir, true, true)
	if err != nil {
		fmt.Println("mkdir:", err)
		return
	}
	defer rp.Release()
	if err := rp.FS.Mkdir(rp.Inode, name, 0o755); err != nil {
		fmt.Println("mkdir:", err)
	}
}

func cmdWrite(k *boot.Kernel, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: write <path> <text...>")
		return
	}
	text := strings.Join(args[1:], " ")
	full := join(k, args[0])
	dir, name := splitPath(full)

	rp, err := vfs.Resolve(k.Mount, full, true, true)
	var inode *vfs.Inode
	if err != nil {
		parent, perr := vfs.Resolve(k.Mount, dir, true, true)
		if perr != nil {
			fmt.Println("write:", perr)
			return
		}
		defer parent.Release()
		inode, err = parent.FS.Create(parent.Inode, name, 0o644)
		if err != nil {
			fmt.Println("write:", err)
			return
		}
	} else {
		defer rp.Release()
		inode = rp.Inode
	}

	h, err := inode.FS.Open(inode, vfs.OWronly|vfs.OTrunc)
	if err != nil {
		fmt.Println("write:", err)
		return
	}
	defer h.Close()
	if _, err := h.Write([]byte(text)); err != nil {
		fmt.Println("write:", err)
	}
}

func cmdCat(k *boot.Kernel, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: cat <path>")
		return
	}
	rp, err := vfs.Resolve(k.Mount, join(k, args[0]), false, true)
	if err != nil {
		fmt.Println("cat:", err)
		return
	}
	defer rp.Release()

	h, err := rp.FS.Open(rp.Inode, vfs.ORdonly)
	if err != nil {
		fmt.Println("cat:", err)
		return
	}
	defer h.Close()

	buf := make([]byte, 4096)
	n, err := h.Read(buf)
	if err != nil {
		fmt.Println("cat:", err)
		return
	}
	fmt.Println(string(buf[:n]))
}

func cmdPs(k *boot.Kernel) {
	fmt.Printf("%-6s %-6s\n", "PID", "STATE")
	if p, ok := k.Procs.Get(k.Root.Proc.PID); ok {
		t, _ := k.Procs.Task(p.PID)
		fmt.Printf("%-6d %-6s\n", p.PID, t.State)
	}
}

func cmdFork(k *boot.Kernel) {
	child, err := k.Procs.Fork(k.Root.Proc)
	if err != nil {
		fmt.Println("fork:", err)
		return
	}
	fmt.Println("forked child pid", child.PID)
}

func cmdTrace(k *boot.Kernel) {
	for _, ev := range k.Trace.Snapshot() {
		fmt.Printf("[%d] %s: %s\n", ev.Seq, ev.Subsys, ev.Message)
	}
}

func join(k *boot.Kernel, path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	cwd := k.Root.Proc.GetCwd()
	if cwd == "/" {
		return "/" + path
	}
	return cwd + "/" + path
}

func splitPath(abs string) (dir, name string) {
	abs = strings.TrimSuffix(abs, "/")
	i := strings.LastIndex(abs, "/")
	if i <= 0 {
		return "/", abs[i+1:]
	}
	return abs[:i], abs[i+1:]
}
