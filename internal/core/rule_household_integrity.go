package core

import (
	"context"
	"fmt"

	"flockcore/pkg/domain"
)

// NewHouseholdIntegrityRule returns the blocking rule that keeps the member
// list non-empty, duplicate free and containing the active member.
func NewHouseholdIntegrityRule() domain.Rule {
	return householdIntegrityRule{}
}

type householdIntegrityRule struct{}

func (householdIntegrityRule) Name() string { return "household_integrity" }

func (r householdIntegrityRule) Evaluate(_ context.Context, view domain.Snapshot) (domain.Result, error) {
	res := domain.Result{}
	block := func(msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  msg,
		})
	}
	h := view.Household
	if len(h.Members) == 0 {
		block("household has no members")
		return res, nil
	}
	seen := make(map[string]struct{}, len(h.Members))
	for _, m := range h.Members {
		if m == "" {
			block("household contains an empty member name")
			continue
		}
		if _, dup := seen[m]; dup {
			block(fmt.Sprintf("member %q listed more than once", m))
		}
		seen[m] = struct{}{}
	}
	if !h.HasMember(h.ActiveMember) {
		block(fmt.Sprintf("active member %q is not a household member", h.ActiveMember))
	}
	return res, nil
}
