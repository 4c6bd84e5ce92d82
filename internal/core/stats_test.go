package core

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRollingAvgDividesByWindow(t *testing.T) {
	eggs := []EggRecord{{Dated: Dated{Date: testToday}, Count: 14}}
	if got := RollingAvg(testCalendar(), eggs, EggCount, 7); got != 2.0 {
		t.Fatalf("expected 2.0, got %v", got)
	}
	if got := RollingAvg(testCalendar(), eggs, EggCount, 0); got != 0 {
		t.Fatalf("expected 0 for empty window, got %v", got)
	}
}

func TestSumByDateAndSeries(t *testing.T) {
	feed := []FeedRecord{
		{Dated: Dated{Date: "2024-03-14"}, Amount: 1.5},
		{Dated: Dated{Date: "2024-03-15"}, Amount: 2},
		{Dated: Dated{Date: "2024-03-15"}, Amount: 0.25},
	}
	if got := SumByDate(feed, "2024-03-15", FeedAmount); math.Abs(got-2.25) > 1e-9 {
		t.Fatalf("expected 2.25, got %v", got)
	}
	series := SeriesFromRecords(feed, []string{"2024-03-13", "2024-03-14", "2024-03-15"}, FeedAmount)
	if diff := cmp.Diff([]float64{0, 1.5, 2.25}, series); diff != "" {
		t.Fatalf("series mismatch:\n%s", diff)
	}
}

func TestActivityByMember(t *testing.T) {
	s := Snapshot{
		Eggs: []EggRecord{
			{Dated: Dated{Date: testToday, By: "Ann"}},
			{Dated: Dated{Date: "2024-03-09", By: "Ann"}},
			{Dated: Dated{Date: "2024-03-08", By: "Ann"}},
		},
		Feed:  []FeedRecord{{Dated: Dated{Date: testToday, By: "Bob"}}},
		Care:  []CareRecord{{Dated: Dated{Date: testToday}}},
		Tasks: []Task{{LastDone: testToday, CreatedBy: "Cy"}},
	}
	got := ActivityByMember(testCalendar(), s, 7)
	want := map[string]int{"Ann": 2, "Bob": 1, "Unknown": 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("activity mismatch:\n%s", diff)
	}
	ranked := RankActivity(got, 2)
	if diff := cmp.Diff([]MemberActivity{{"Ann", 2}, {"Bob", 1}}, ranked); diff != "" {
		t.Fatalf("ranking mismatch:\n%s", diff)
	}
}

func TestDueTasksAndLowInventory(t *testing.T) {
	s := Snapshot{
		Tasks: []Task{
			{ID: "later", NextDue: "2024-03-20"},
			{ID: "today", NextDue: testToday},
			{ID: "overdue", NextDue: "2024-03-01"},
		},
		Inventory: []InventoryItem{
			{ID: "ok", Quantity: 5, Threshold: 1},
			{ID: "edge", Quantity: 1, Threshold: 1},
		},
	}
	due := DueTasks(s, testToday)
	if len(due) != 2 || due[0].ID != "overdue" || due[1].ID != "today" {
		t.Fatalf("unexpected due tasks %+v", due)
	}
	low := LowInventory(s)
	if len(low) != 1 || low[0].ID != "edge" {
		t.Fatalf("unexpected low items %+v", low)
	}
}

func TestKnownContributorsSorted(t *testing.T) {
	s := Snapshot{
		Household: Household{Members: []string{"bob", "Ann"}},
		Eggs:      []EggRecord{{Dated: Dated{By: "Émile"}}},
		Tasks:     []Task{{CreatedBy: "Cy", LastDoneBy: "bob"}},
	}
	got := KnownContributors(s)
	want := []string{"Ann", "bob", "Cy", "Émile"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("contributors mismatch:\n%s", diff)
	}
}
