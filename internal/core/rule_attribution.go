package core

import (
	"context"
	"fmt"

	"flockcore/pkg/domain"
)

// NewAttributionRule returns a warning rule flagging records credited to
// someone who is no longer a household member.
func NewAttributionRule() domain.Rule {
	return attributionRule{}
}

type attributionRule struct{}

func (attributionRule) Name() string { return "attribution_known" }

func (r attributionRule) Evaluate(_ context.Context, view domain.Snapshot) (domain.Result, error) {
	res := domain.Result{}
	members := make(map[string]struct{}, len(view.Household.Members))
	for _, m := range view.Household.Members {
		members[m] = struct{}{}
	}
	check := func(c domain.Collection, id, field, value string) {
		if value == "" {
			return
		}
		if _, ok := members[value]; ok {
			return
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:       r.Name(),
			Severity:   domain.SeverityWarn,
			Message:    fmt.Sprintf("%s record %s %s %q is not a member", c, id, field, value),
			Collection: c,
			RecordID:   id,
		})
	}
	for _, rec := range view.Eggs {
		check(domain.CollectionEggs, rec.ID, "by", rec.By)
	}
	for _, rec := range view.Feed {
		check(domain.CollectionFeed, rec.ID, "by", rec.By)
	}
	for _, rec := range view.Water {
		check(domain.CollectionWater, rec.ID, "by", rec.By)
	}
	for _, rec := range view.Care {
		check(domain.CollectionCare, rec.ID, "by", rec.By)
	}
	for _, item := range view.Inventory {
		check(domain.CollectionInventory, item.ID, "by", item.By)
	}
	for _, t := range view.Tasks {
		check(domain.CollectionTasks, t.ID, "createdBy", t.CreatedBy)
		check(domain.CollectionTasks, t.ID, "lastDoneBy", t.LastDoneBy)
	}
	return res, nil
}
