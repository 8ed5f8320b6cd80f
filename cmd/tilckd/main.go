// Command tilckd boots the simulated kernel and drives its
// scheduler/timer-wheel tick loop, the daemon-mode entry point spec.md
// §6 describes alongside the interactive devshell.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tilck-go/tilck/boot"
	"github.com/tilck-go/tilck/kconfig"
	"github.com/tilck-go/tilck/klog"
)

func main() {
	cfg := kconfig.Default()

	root := &cobra.Command{
		Use:   "tilckd",
		Short: "run the simulated kernel as a background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}
	kconfig.BindFlags(root.Flags(), &cfg)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg kconfig.Config) error {
	k, err := boot.Boot(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	klog.Logf("boot", "tilckd running, init pid=%d", k.Root.Proc.PID)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			klog.Logf("boot", "shutting down")
			return nil
		case <-ticker.C:
			k.Tick()
		}
	}
}
