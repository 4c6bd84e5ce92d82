package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"flockcore/internal/app"
	"flockcore/internal/core"
)

func newSummaryCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "summary", Short: "Show today's dashboard", Args: cobra.NoArgs}
	cmd.RunE = rt.withApp(func(_ context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		s := a.Service.Summary()
		if rt.jsonOut {
			return rt.printJSON(cmd, s)
		}
		feedUnit, waterUnit := "kg", "L"
		if s.Units == core.UnitsImperial {
			feedUnit, waterUnit = "lb", "gal"
		}
		synced := s.LastSyncedAt
		if synced == "" {
			synced = "never"
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Flock\t%s (%d hens)\n", s.FlockName, s.HenCount)
		fmt.Fprintf(w, "Logging as\t%s (%d members)\n", s.ActiveMember, s.MemberCount)
		fmt.Fprintf(w, "Eggs today\t%g (7-day avg %g)\n", s.EggsToday, s.EggsWeekAvg)
		fmt.Fprintf(w, "Feed today\t%g %s\n", s.FeedToday, feedUnit)
		fmt.Fprintf(w, "Water today\t%g %s\n", s.WaterToday, waterUnit)
		fmt.Fprintf(w, "Tasks due\t%d\n", s.TasksDue)
		fmt.Fprintf(w, "Low supplies\t%d\n", s.LowSupplies)
		fmt.Fprintf(w, "Last synced\t%s (auto-sync %t)\n", synced, s.AutoSync)
		return w.Flush()
	})
	return cmd
}

func newChartCommand(rt *runtime) *cobra.Command {
	var days int
	cmd := &cobra.Command{Use: "chart", Short: "Show daily totals for the trailing window", Args: cobra.NoArgs}
	cmd.Flags().IntVar(&days, "days", core.DefaultChartDays, "window length in days")
	cmd.RunE = rt.withApp(func(_ context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		series := a.Service.Series(days)
		if rt.jsonOut {
			return rt.printJSON(cmd, series)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "day\teggs\tbroken\tfeed\twater\t")
		for i, label := range series.Labels {
			fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\t\n", label, series.Eggs[i], series.Broken[i], series.Feed[i], series.Water[i])
		}
		return w.Flush()
	})
	return cmd
}

func newActivityCommand(rt *runtime) *cobra.Command {
	var days, limit int
	cmd := &cobra.Command{Use: "activity", Short: "Rank members by records logged", Args: cobra.NoArgs}
	cmd.Flags().IntVar(&days, "days", core.DefaultChartDays, "window length in days")
	cmd.Flags().IntVar(&limit, "limit", core.DefaultActivityLimit, "rows to show (0 for all)")
	cmd.RunE = rt.withApp(func(_ context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		rows := a.Service.Activity(days, limit)
		if rt.jsonOut {
			return rt.printJSON(cmd, rows)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%d\n", r.Member, r.Count)
		}
		return w.Flush()
	})
	return cmd
}
