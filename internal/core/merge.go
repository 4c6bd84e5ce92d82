package core

import (
	"strings"

	"flockcore/pkg/domain"
)

// MergeMemberRecords reassigns every attribution held by from to to and
// reconciles the member list. It returns the number of reassigned fields; zero
// is a valid outcome. s is modified in place.
func MergeMemberRecords(s *Snapshot, from, to string) (int, error) {
	if from == "" || to == "" {
		return 0, domain.ErrInvalidMember
	}
	if from == to {
		return 0, domain.ErrMergeToSelf
	}
	changed := 0
	swap := func(by *string) {
		if *by == from {
			*by = to
			changed++
		}
	}
	for i := range s.Eggs {
		swap(&s.Eggs[i].By)
	}
	for i := range s.Feed {
		swap(&s.Feed[i].By)
	}
	for i := range s.Water {
		swap(&s.Water[i].By)
	}
	for i := range s.Care {
		swap(&s.Care[i].By)
	}
	for i := range s.Inventory {
		swap(&s.Inventory[i].By)
	}
	for i := range s.Tasks {
		swap(&s.Tasks[i].CreatedBy)
		swap(&s.Tasks[i].LastDoneBy)
	}

	h := &s.Household
	if !h.HasMember(to) {
		h.Members = append(h.Members, to)
	}
	if h.HasMember(from) {
		h.Members = removeString(h.Members, from)
		if h.ActiveMember == from {
			h.ActiveMember = to
		}
	}
	return changed, nil
}

// AddMember appends a trimmed member name and makes it active. Names are
// compared case-insensitively for duplicates.
func AddMember(s *Snapshot, raw string) (string, error) {
	name := ValidateString(raw, maxNameLength, "")
	if name == "" {
		return "", domain.ErrInvalidMember
	}
	for _, m := range s.Household.Members {
		if strings.EqualFold(m, name) {
			return "", domain.ErrDuplicateMember
		}
	}
	s.Household.Members = append(s.Household.Members, name)
	s.Household.ActiveMember = name
	return name, nil
}

// RemoveMember drops a member. The last remaining member and the active member
// cannot be removed.
func RemoveMember(s *Snapshot, name string) error {
	h := &s.Household
	if len(h.Members) <= 1 {
		return domain.ErrLastMember
	}
	if name == h.ActiveMember {
		return domain.ErrActiveMember
	}
	if !h.HasMember(name) {
		return domain.ErrUnknownMember
	}
	h.Members = removeString(h.Members, name)
	return nil
}

// SwitchMember sets the member credited with new records.
func SwitchMember(s *Snapshot, name string) error {
	if !s.Household.HasMember(name) {
		return domain.ErrUnknownMember
	}
	s.Household.ActiveMember = name
	return nil
}

func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
