package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"flockcore/internal/app"
	"flockcore/pkg/domain"
)

func newExportCommand(rt *runtime) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of the whole flock log",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file, "-" for stdout (default chicken-tracker-backup-<today>.json)`)
	cmd.RunE = rt.withApp(func(_ context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		data, err := a.Service.Export()
		if err != nil {
			return err
		}
		if out == "-" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		path := out
		if path == "" {
			path = a.Service.ExportFileName()
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", path)
		return err
	})
	return cmd
}

func newImportCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the flock log with a JSON backup",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		raw, err := os.ReadFile(filepath.Clean(args[0]))
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}
		snap, res, err := a.Service.Import(ctx, raw)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d egg, %d feed, %d water, %d care, %d task and %d inventory records\n",
			len(snap.Eggs), len(snap.Feed), len(snap.Water), len(snap.Care), len(snap.Tasks), len(snap.Inventory))
		return err
	})
	return cmd
}

func newResetCommand(rt *runtime) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase every record and restore default settings",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	cmd.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		if !yes {
			return fmt.Errorf("reset erases all local data; pass --yes to confirm")
		}
		if _, err := a.Service.Reset(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "reset to defaults")
		return err
	})
	return cmd
}

func newSyncCommand(rt *runtime) *cobra.Command {
	push := &cobra.Command{Use: "push", Short: "Upload the local snapshot to the remote", Args: cobra.NoArgs}
	push.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		if !a.Syncing() {
			return domain.ErrSyncUnavailable
		}
		stamp, err := a.Syncer.Push(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "pushed at %s\n", stamp)
		return err
	})

	var force bool
	pull := &cobra.Command{Use: "pull", Short: "Fetch the remote snapshot if it is newer", Args: cobra.NoArgs}
	pull.Flags().BoolVar(&force, "force", false, "adopt the remote snapshot even if it is older")
	pull.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		if !a.Syncing() {
			return domain.ErrSyncUnavailable
		}
		res, err := a.Syncer.Pull(ctx, force)
		if err != nil {
			return err
		}
		msg := "local snapshot is current"
		switch {
		case res.NotFound:
			msg = "no remote snapshot yet"
		case res.Adopted:
			msg = "adopted remote snapshot"
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
		return err
	})
	status := &cobra.Command{Use: "status", Short: "Show the remote snapshot of this flock", Args: cobra.NoArgs}
	status.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		if !a.Syncing() {
			return domain.ErrSyncUnavailable
		}
		st, err := a.Remote().Status(ctx)
		if err != nil {
			return err
		}
		if rt.jsonOut {
			return rt.printJSON(cmd, st)
		}
		if !st.Found {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "no remote snapshot at %s (%s)\n", st.Key, st.Driver)
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d bytes, pushed %s\n",
			st.Key, st.Driver, st.Size, st.UpdatedAt.UTC().Format(time.RFC3339))
		return err
	})

	list := &cobra.Command{Use: "list", Short: "List every flock snapshot in the remote", Args: cobra.NoArgs}
	list.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		if !a.Syncing() {
			return domain.ErrSyncUnavailable
		}
		flocks, err := a.Remote().Flocks(ctx)
		if err != nil {
			return err
		}
		if rt.jsonOut {
			return rt.printJSON(cmd, flocks)
		}
		out := cmd.OutOrStdout()
		if len(flocks) == 0 {
			_, err = fmt.Fprintln(out, "no flock snapshots")
			return err
		}
		for _, f := range flocks {
			if _, err := fmt.Fprintf(out, "%s\t%d bytes\t%s\n", f.ID, f.Size, f.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
				return err
			}
		}
		return nil
	})

	var yes bool
	wipe := &cobra.Command{Use: "clear", Short: "Delete this flock's remote snapshot", Args: cobra.NoArgs}
	wipe.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	wipe.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		if !a.Syncing() {
			return domain.ErrSyncUnavailable
		}
		if !yes {
			return fmt.Errorf("clear deletes the remote snapshot; pass --yes to confirm")
		}
		existed, err := a.Remote().Clear(ctx)
		if err != nil {
			return err
		}
		msg := "no remote snapshot to clear"
		if existed {
			msg = "cleared " + a.Remote().Key()
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
		return err
	})
	return groupCommand("sync", "Remote snapshot sync", push, pull, status, list, wipe)
}
