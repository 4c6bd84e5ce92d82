package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flockcore/internal/app"
)

func newWatchCommand(rt *runtime) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow changes made by other processes and serve metrics until interrupted",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&listen, "listen", "", "metrics address (default from config, empty string disables)")
	cmd.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		addr := a.Cfg.Metrics.Listen
		if cmd.Flags().Changed("listen") {
			addr = listen
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if a.Syncing() {
			if _, err := a.Syncer.Pull(ctx, false); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: initial pull: %v\n", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "watching %s storage (mode %s)\n", a.Cfg.Storage.Driver, a.Cfg.Watch.Mode)
		return a.Run(ctx, addr)
	})
	return cmd
}
