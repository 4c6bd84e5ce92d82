package core

import (
	"time"
)

// DateLayout is the ISO civil date format used by every dated record.
const DateLayout = "2006-01-02"

// SyncStampLayout formats lastSyncedAt stamps. It sorts lexically in time order.
const SyncStampLayout = "2006-01-02 15:04:05"

// Calendar resolves civil dates in a fixed location. Day arithmetic is done on
// local calendar fields, so a day that repeats or skips an hour across a DST
// transition still advances exactly one civil date.
type Calendar struct {
	loc   *time.Location
	nowFn func() time.Time
}

// NewCalendar returns a calendar in loc (time.Local when nil) using the wall clock.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc, nowFn: time.Now}
}

// FixedCalendar returns a calendar pinned to now, used by tests and replays.
func FixedCalendar(now time.Time) Calendar {
	return Calendar{loc: now.Location(), nowFn: func() time.Time { return now }}
}

func (c Calendar) location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Now returns the current instant in the calendar's location.
func (c Calendar) Now() time.Time {
	if c.nowFn == nil {
		return time.Now().In(c.location())
	}
	return c.nowFn().In(c.location())
}

// Today returns the current local date as YYYY-MM-DD.
func (c Calendar) Today() string {
	return c.Now().Format(DateLayout)
}

// Stamp returns the current instant formatted for lastSyncedAt.
func (c Calendar) Stamp() string {
	return c.Now().Format(SyncStampLayout)
}

// AddDays returns date shifted by n civil days. An unparseable date is
// treated as today.
func (c Calendar) AddDays(date string, n int) string {
	t, err := time.ParseInLocation(DateLayout, date, c.location())
	if err != nil {
		t = c.Now()
	}
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 12, 0, 0, 0, c.location()).Format(DateLayout)
}

// LastNDays returns the trailing n dates ending today, oldest first.
func (c Calendar) LastNDays(n int) []string {
	if n <= 0 {
		return nil
	}
	today := c.Today()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = c.AddDays(today, i-(n-1))
	}
	return out
}

// ShortLabel trims the year from an ISO date, leaving MM-DD for chart axes.
func ShortLabel(date string) string {
	if len(date) <= 5 {
		return date
	}
	return date[5:]
}
