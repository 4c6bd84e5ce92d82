package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flockcore/internal/app"
	"flockcore/internal/config"
	"flockcore/internal/core"
)

// runtime carries global flags and test overrides into subcommands.
type runtime struct {
	configPath string
	jsonOut    bool
	appOpts    []app.Option
}

func newRootCommand(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "flockctl",
		Short: "Track eggs, feed, water, care, chores and supplies for a backyard flock",
		Long: `flockctl keeps a household's flock log in a local store and optionally
syncs it with a shared remote snapshot (filesystem, S3, GCS or redis).

Configuration comes from --config (YAML) and FLOCKCORE_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", os.Getenv("FLOCKCORE_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().BoolVar(&rt.jsonOut, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newSummaryCommand(rt),
		newChartCommand(rt),
		newActivityCommand(rt),
		newEggsCommand(rt),
		newFeedCommand(rt),
		newWaterCommand(rt),
		newCareCommand(rt),
		newTaskCommand(rt),
		newInventoryCommand(rt),
		newRecordCommand(rt),
		newMemberCommand(rt),
		newProfileCommand(rt),
		newAutoSyncCommand(rt),
		newExportCommand(rt),
		newImportCommand(rt),
		newResetCommand(rt),
		newSyncCommand(rt),
		newWatchCommand(rt),
	)
	return root
}

type appFunc func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error

// withApp opens the configured App around fn. Changes still waiting for an
// auto-sync push are flushed before the App closes.
func (rt *runtime) withApp(fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.Load(rt.configPath)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, rt.appOpts...)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		if err := fn(ctx, cmd, a, args); err != nil {
			return err
		}
		return a.Flush(ctx)
	}
}

func (rt *runtime) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult reports non-blocking rule findings on stderr.
func printResult(cmd *cobra.Command, res core.Result) {
	for _, v := range res.Warnings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", v.Rule, v.Message)
	}
}
