package core

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCalendarDays(t *testing.T) {
	cal := testCalendar()
	if cal.Today() != testToday {
		t.Fatalf("unexpected today %s", cal.Today())
	}
	if got := cal.AddDays("2024-02-28", 2); got != "2024-03-01" {
		t.Fatalf("leap year arithmetic: %s", got)
	}
	if got := cal.AddDays("garbage", 1); got != "2024-03-16" {
		t.Fatalf("invalid date should count from today, got %s", got)
	}
	want := []string{"2024-03-13", "2024-03-14", "2024-03-15"}
	if diff := cmp.Diff(want, cal.LastNDays(3)); diff != "" {
		t.Fatalf("last days mismatch:\n%s", diff)
	}
	if ShortLabel("2024-03-05") != "03-05" {
		t.Fatalf("unexpected label %s", ShortLabel("2024-03-05"))
	}
	if cal.Stamp() != "2024-03-15 09:30:00" {
		t.Fatalf("unexpected stamp %s", cal.Stamp())
	}
}

func TestCalendarAcrossDSTKeepsCivilDates(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	cal := FixedCalendar(time.Date(2024, time.March, 11, 0, 30, 0, 0, loc))
	want := []string{"2024-03-09", "2024-03-10", "2024-03-11"}
	if diff := cmp.Diff(want, cal.LastNDays(3)); diff != "" {
		t.Fatalf("days across spring-forward:\n%s", diff)
	}
	if got := cal.AddDays("2024-11-02", 1); got != "2024-11-03" {
		t.Fatalf("fall-back arithmetic: %s", got)
	}
}
