package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"flockcore/internal/app"
	"flockcore/internal/core"
)

// datedFlags are shared by the dated record commands.
type datedFlags struct {
	date string
	by   string
}

func (f *datedFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "record date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.by, "by", "", "member credited (default the active member)")
}

func (f datedFlags) header() core.Dated { return core.Dated{Date: f.date, By: f.by} }

func addCommand(short string) *cobra.Command {
	return &cobra.Command{Use: "add", Short: short, Args: cobra.NoArgs}
}

func groupCommand(use, short string, children ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(children...)
	return cmd
}

func newEggsCommand(rt *runtime) *cobra.Command {
	var (
		dated         datedFlags
		count, broken float64
	)
	add := addCommand("Log an egg collection")
	dated.bind(add)
	add.Flags().Float64Var(&count, "count", 0, "eggs collected")
	add.Flags().Float64Var(&broken, "broken", 0, "eggs broken")
	add.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		rec, res, err := a.Service.AddEggs(ctx, core.EggRecord{Dated: dated.header(), Count: count, Broken: broken})
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return rt.printAdded(cmd, rec, "eggs", rec.ID)
	})
	return groupCommand("eggs", "Egg collections", add)
}

func newFeedCommand(rt *runtime) *cobra.Command {
	var (
		dated  datedFlags
		kind   string
		amount float64
	)
	add := addCommand("Log feed given")
	dated.bind(add)
	add.Flags().StringVar(&kind, "type", "", "feed type (required)")
	add.Flags().Float64Var(&amount, "amount", 0, "amount in kg, or lb for imperial flocks")
	add.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		rec, res, err := a.Service.AddFeed(ctx, core.FeedRecord{Dated: dated.header(), Type: kind, Amount: amount})
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return rt.printAdded(cmd, rec, "feed", rec.ID)
	})
	return groupCommand("feed", "Feed records", add)
}

func newWaterCommand(rt *runtime) *cobra.Command {
	var (
		dated  datedFlags
		amount float64
	)
	add := addCommand("Log water given")
	dated.bind(add)
	add.Flags().Float64Var(&amount, "amount", 0, "amount in liters, or gallons for imperial flocks")
	add.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		rec, res, err := a.Service.AddWater(ctx, core.WaterRecord{Dated: dated.header(), Amount: amount})
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return rt.printAdded(cmd, rec, "water", rec.ID)
	})
	return groupCommand("water", "Water records", add)
}

func newCareCommand(rt *runtime) *cobra.Command {
	var (
		dated          datedFlags
		category, note string
	)
	add := addCommand("Log a husbandry note")
	dated.bind(add)
	add.Flags().StringVar(&category, "category", "", "care category (required)")
	add.Flags().StringVar(&note, "note", "", "free-form note")
	add.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		rec, res, err := a.Service.AddCare(ctx, core.CareRecord{Dated: dated.header(), Category: category, Note: note})
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return rt.printAdded(cmd, rec, "care", rec.ID)
	})
	return groupCommand("care", "Care notes", add)
}

func newTaskCommand(rt *runtime) *cobra.Command {
	var (
		name    string
		cadence int
	)
	add := addCommand("Add a recurring chore")
	add.Flags().StringVar(&name, "name", "", "task name (required)")
	add.Flags().IntVar(&cadence, "every", 1, "cadence in days")
	add.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		task, res, err := a.Service.AddTask(ctx, core.Task{Name: name, CadenceDays: cadence})
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return rt.printAdded(cmd, task, "task", task.ID)
	})

	done := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a chore done today",
		Args:  cobra.ExactArgs(1),
	}
	done.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		task, res, err := a.Service.CompleteTask(ctx, args[0])
		if err != nil {
			return err
		}
		printResult(cmd, res)
		if rt.jsonOut {
			return rt.printJSON(cmd, task)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s done, next due %s\n", task.Name, task.NextDue)
		return err
	})
	return groupCommand("task", "Recurring chores", add, done)
}

func newInventoryCommand(rt *runtime) *cobra.Command {
	var (
		item, unit          string
		quantity, threshold float64
	)
	add := addCommand("Track a stocked supply")
	add.Flags().StringVar(&item, "item", "", "item name (required)")
	add.Flags().StringVar(&unit, "unit", "", "unit of measure (required)")
	add.Flags().Float64Var(&quantity, "quantity", 0, "quantity on hand")
	add.Flags().Float64Var(&threshold, "threshold", 0, "low-stock threshold")
	add.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
		got, res, err := a.Service.AddInventory(ctx, core.InventoryItem{Item: item, Unit: unit, Quantity: quantity, Threshold: threshold})
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return rt.printAdded(cmd, got, "inventory", got.ID)
	})

	adjust := &cobra.Command{
		Use:   "adjust <id> <delta>",
		Short: "Add to or take from a supply",
		Args:  cobra.ExactArgs(2),
	}
	// negative deltas must not parse as shorthand flags
	adjust.Flags().SetInterspersed(false)
	adjust.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		delta, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("delta %q: %w", args[1], err)
		}
		got, res, err := a.Service.AdjustInventory(ctx, args[0], delta)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		if rt.jsonOut {
			return rt.printJSON(cmd, got)
		}
		low := ""
		if got.Low() {
			low = " (low)"
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %g %s%s\n", got.Item, got.Quantity, got.Unit, low)
		return err
	})
	return groupCommand("inventory", "Stocked supplies", add, adjust)
}

func newRecordCommand(rt *runtime) *cobra.Command {
	rm := &cobra.Command{
		Use:   "rm <collection> <id>",
		Short: "Remove a record from eggs, feed, water, care, tasks or inventory",
		Args:  cobra.ExactArgs(2),
	}
	rm.RunE = rt.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		res, err := a.Service.RemoveRecord(ctx, core.Collection(args[0]), args[1])
		if err != nil {
			return err
		}
		printResult(cmd, res)
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s\n", args[0], args[1])
		return err
	})
	return groupCommand("record", "Any record", rm)
}

func (rt *runtime) printAdded(cmd *cobra.Command, v any, kind, id string) error {
	if rt.jsonOut {
		return rt.printJSON(cmd, v)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "added %s %s\n", kind, id)
	return err
}
