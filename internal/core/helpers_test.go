package core

import (
	"fmt"
	"testing"
	"time"

	"flockcore/internal/infra/persistence/memory"
)

var testNow = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

const testToday = "2024-03-15"

func testCalendar() Calendar { return FixedCalendar(testNow) }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

func newTestNormalizer() Normalizer {
	return NewNormalizer(testCalendar(), &seqIDs{})
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *memory.Store) {
	t.Helper()
	kv := memory.NewStore()
	svc := NewInMemoryService(kv, testCalendar(), &seqIDs{}, opts...)
	return svc, kv
}

// checkInvariants asserts the properties every normalized snapshot holds.
func checkInvariants(t *testing.T, s Snapshot) {
	t.Helper()
	h := s.Household
	if len(h.Members) == 0 {
		t.Fatalf("members empty")
	}
	seen := map[string]bool{}
	for _, m := range h.Members {
		if m == "" || seen[m] {
			t.Fatalf("invalid member list %v", h.Members)
		}
		seen[m] = true
	}
	if !h.HasMember(h.ActiveMember) {
		t.Fatalf("active member %q not in %v", h.ActiveMember, h.Members)
	}
	if s.Profile.Units != UnitsImperial && s.Profile.Units != UnitsMetric {
		t.Fatalf("unexpected units %q", s.Profile.Units)
	}
	if s.Profile.HenCount < 0 || s.Profile.HenCount > maxHenCount {
		t.Fatalf("hen count out of range: %d", s.Profile.HenCount)
	}
	nonNeg := func(label string, v float64) {
		if v < 0 {
			t.Fatalf("%s negative: %v", label, v)
		}
	}
	header := func(d Dated) {
		if d.ID == "" || d.Date == "" || d.By == "" {
			t.Fatalf("incomplete header %+v", d)
		}
	}
	for _, r := range s.Eggs {
		header(r.Dated)
		nonNeg("count", r.Count)
		nonNeg("broken", r.Broken)
	}
	for _, r := range s.Feed {
		header(r.Dated)
		nonNeg("kg", r.Amount)
	}
	for _, r := range s.Water {
		header(r.Dated)
		nonNeg("liters", r.Amount)
	}
	for _, r := range s.Care {
		header(r.Dated)
	}
	for _, task := range s.Tasks {
		if task.ID == "" || task.Name == "" || task.CreatedBy == "" || task.LastDoneBy == "" || task.NextDue == "" {
			t.Fatalf("incomplete task %+v", task)
		}
		if task.CadenceDays < minCadenceDays || task.CadenceDays > maxCadenceDays {
			t.Fatalf("cadence out of range: %d", task.CadenceDays)
		}
	}
	for _, item := range s.Inventory {
		if item.ID == "" || item.Item == "" || item.Unit == "" || item.By == "" {
			t.Fatalf("incomplete item %+v", item)
		}
		nonNeg("quantity", item.Quantity)
		nonNeg("threshold", item.Threshold)
	}
}
