package core

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"flockcore/pkg/domain"
)

// UnknownMember labels activity whose attribution is empty.
const UnknownMember = "Unknown"

// Value accessors for the numeric fields charted and summed.
var (
	EggCount    = func(r EggRecord) float64 { return r.Count }
	EggBroken   = func(r EggRecord) float64 { return r.Broken }
	FeedAmount  = func(r FeedRecord) float64 { return r.Amount }
	WaterAmount = func(r WaterRecord) float64 { return r.Amount }
)

// SumByDate totals value over records whose date equals date exactly.
func SumByDate[T domain.DatedRecord](list []T, date string, value func(T) float64) float64 {
	var sum float64
	for _, r := range list {
		if r.RecordDate() == date {
			sum += value(r)
		}
	}
	return sum
}

// RollingAvg sums the trailing nDays (today inclusive) and divides by nDays,
// so days without records count as zero.
func RollingAvg[T domain.DatedRecord](cal Calendar, list []T, value func(T) float64, nDays int) float64 {
	if nDays <= 0 {
		return 0
	}
	var total float64
	for _, day := range cal.LastNDays(nDays) {
		total += SumByDate(list, day, value)
	}
	return total / float64(nDays)
}

// SeriesFromRecords maps SumByDate over dateKeys in order.
func SeriesFromRecords[T domain.DatedRecord](list []T, dateKeys []string, value func(T) float64) []float64 {
	out := make([]float64, len(dateKeys))
	for i, day := range dateKeys {
		out[i] = SumByDate(list, day, value)
	}
	return out
}

// ActivityByMember counts egg, feed, water and care records dated within the
// trailing nDays, keyed by attribution.
func ActivityByMember(cal Calendar, s Snapshot, nDays int) map[string]int {
	minDate := cal.AddDays(cal.Today(), -(nDays - 1))
	tally := make(map[string]int)
	count := func(r domain.DatedRecord) {
		if r.RecordDate() < minDate {
			return
		}
		key := r.Attribution()
		if key == "" {
			key = UnknownMember
		}
		tally[key]++
	}
	for _, r := range s.Eggs {
		count(r)
	}
	for _, r := range s.Feed {
		count(r)
	}
	for _, r := range s.Water {
		count(r)
	}
	for _, r := range s.Care {
		count(r)
	}
	return tally
}

// MemberActivity is one row of a ranked activity table.
type MemberActivity struct {
	Member string `json:"member"`
	Count  int    `json:"count"`
}

// RankActivity orders a tally by descending count, then name, keeping at most
// limit rows (all when limit <= 0).
func RankActivity(tally map[string]int, limit int) []MemberActivity {
	rows := make([]MemberActivity, 0, len(tally))
	for member, count := range tally {
		rows = append(rows, MemberActivity{Member: member, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Member < rows[j].Member
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// DueTasks returns tasks whose nextDue is on or before today, soonest first.
func DueTasks(s Snapshot, today string) []Task {
	var out []Task
	for _, t := range s.Tasks {
		if t.NextDue <= today {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextDue < out[j].NextDue })
	return out
}

// LowInventory returns items at or below their alert threshold.
func LowInventory(s Snapshot) []InventoryItem {
	var out []InventoryItem
	for _, item := range s.Inventory {
		if item.Low() {
			out = append(out, item)
		}
	}
	return out
}

// KnownContributors lists members plus every attribution found in records,
// sorted with English collation.
func KnownContributors(s Snapshot) []string {
	seen := make(map[string]struct{})
	add := func(name string) {
		if name != "" {
			seen[name] = struct{}{}
		}
	}
	for _, m := range s.Household.Members {
		add(m)
	}
	for _, r := range s.Eggs {
		add(r.By)
	}
	for _, r := range s.Feed {
		add(r.By)
	}
	for _, r := range s.Water {
		add(r.By)
	}
	for _, r := range s.Care {
		add(r.By)
	}
	for _, r := range s.Inventory {
		add(r.By)
	}
	for _, t := range s.Tasks {
		add(t.CreatedBy)
		add(t.LastDoneBy)
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	collate.New(language.English).SortStrings(out)
	return out
}
