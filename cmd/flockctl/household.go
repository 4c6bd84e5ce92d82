package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flockcore/internal/app"
	"flockcore/internal/core"
)

func newMemberCommand(rt *runtime) *cobra.Command {
	add := &cobra.Command{Use: "add <name>", Short: "Add a member and make them active", Args: cobra.ExactArgs(1)}
	add.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		name, res, err := a.Service.AddMember(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(cmd, res)
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "added member %s\n", name)
		return err
	})

	rm := &cobra.Command{Use: "rm <name>", Short: "Remove a member who is not active", Args: cobra.ExactArgs(1)}
	rm.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		res, err := a.Service.RemoveMember(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(cmd, res)
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed member %s\n", args[0])
		return err
	})

	use := &cobra.Command{Use: "use <name>", Short: "Switch the active member", Args: cobra.ExactArgs(1)}
	use.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		res, err := a.Service.SwitchMember(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(cmd, res)
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "active member %s\n", args[0])
		return err
	})

	merge := &cobra.Command{
		Use:   "merge <from> <to>",
		Short: "Re-credit every record from one member to another",
		Args:  cobra.ExactArgs(2),
	}
	merge.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		n, res, err := a.Service.MergeMembers(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		printResult(cmd, res)
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "merged %s into %s (%d records)\n", args[0], args[1], n)
		return err
	})

	list := &cobra.Command{Use: "list", Short: "List members and known contributors", Args: cobra.NoArgs}
	list.RunE = rt.withApp(func(_ context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		h := a.Service.Snapshot().Household
		contributors := a.Service.KnownContributors()
		if rt.jsonOut {
			return rt.printJSON(cmd, map[string]any{
				"members":      h.Members,
				"activeMember": h.ActiveMember,
				"contributors": contributors,
			})
		}
		out := cmd.OutOrStdout()
		for _, m := range h.Members {
			marker := " "
			if m == h.ActiveMember {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, m)
		}
		var former []string
		for _, c := range contributors {
			if !h.HasMember(c) {
				former = append(former, c)
			}
		}
		if len(former) > 0 {
			fmt.Fprintf(out, "former contributors: %s\n", strings.Join(former, ", "))
		}
		return nil
	})
	return groupCommand("member", "Household members", add, rm, use, merge, list)
}

func newProfileCommand(rt *runtime) *cobra.Command {
	var (
		name string
		hens int
	)
	set := &cobra.Command{Use: "set", Short: "Set the flock name or hen count", Args: cobra.NoArgs}
	set.Flags().StringVar(&name, "name", "", "flock name")
	set.Flags().IntVar(&hens, "hens", 0, "number of hens")
	set.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		var update core.ProfileUpdate
		if cmd.Flags().Changed("name") {
			update.FlockName = &name
		}
		if cmd.Flags().Changed("hens") {
			update.HenCount = &hens
		}
		if update.FlockName == nil && update.HenCount == nil {
			return fmt.Errorf("nothing to set: pass --name and/or --hens")
		}
		profile, res, err := a.Service.UpdateProfile(ctx, update)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		if rt.jsonOut {
			return rt.printJSON(cmd, profile)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d hens (%s)\n", profile.FlockName, profile.HenCount, profile.Units)
		return err
	})
	return groupCommand("profile", "Flock profile", set)
}

func newAutoSyncCommand(rt *runtime) *cobra.Command {
	toggle := func(enabled bool) *cobra.Command {
		use, short := "off", "Stop pushing changes automatically"
		if enabled {
			use, short = "on", "Push changes to the remote shortly after they are made"
		}
		cmd := &cobra.Command{Use: use, Short: short, Args: cobra.NoArgs}
		cmd.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			res, err := a.Service.SetAutoSync(ctx, enabled)
			if err != nil {
				return err
			}
			printResult(cmd, res)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "auto-sync %s\n", use)
			return err
		})
		return cmd
	}
	return groupCommand("autosync", "Automatic remote push", toggle(true), toggle(false))
}
