// Package kconfig parses the kernel command line cmd/tilckd and
// cmd/devshell accept, mirroring spec.md §6's boot-time configuration
// surface. Flags are defined with pflag and bound into cobra commands so
// `tilckd -h` reads the same way any cobra-based CLI in this ecosystem
// does.
package kconfig

import (
	"github.com/spf13/pflag"
)

// Config is the parsed kernel command line.
type Config struct {
	RootFS      string // "ramfs" is the only backing store this kernel ships
	ForkNoCoW   bool   // FORK_NO_COW: use eager page-directory duplication instead of CoW
	Quiet       bool
	Debug       bool
	PhysMemMB   int
	MaxTasks    int // parsed but not enforced: no subsystem reads it
	TraceBuffer int
}

// Default returns the kernel's out-of-the-box configuration.
func Default() Config {
	return Config{
		RootFS:      "ramfs",
		ForkNoCoW:   false,
		PhysMemMB:   64,
		MaxTasks:    256,
		TraceBuffer: 4096,
	}
}

// BindFlags registers every kernel command-line flag onto fs, for
// cmd/tilckd and cmd/devshell to share one flag surface.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.RootFS, "root", cfg.RootFS, "root filesystem backing store")
	fs.BoolVar(&cfg.ForkNoCoW, "fork-no-cow", cfg.ForkNoCoW, "use eager (non-CoW) page directory duplication on fork")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "suppress info-level kernel log output")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug-level kernel log output")
	fs.IntVar(&cfg.PhysMemMB, "mem", cfg.PhysMemMB, "simulated physical memory size in MiB")
	fs.IntVar(&cfg.MaxTasks, "max-tasks", cfg.MaxTasks, "maximum number of live tasks (not enforced)")
	fs.IntVar(&cfg.TraceBuffer, "trace-buffer", cfg.TraceBuffer, "trace ring buffer capacity, in events")
}
