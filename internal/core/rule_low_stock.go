package core

import (
	"context"
	"fmt"

	"flockcore/pkg/domain"
)

// NewLowStockRule returns a warning rule flagging supplies at or below their
// alert threshold.
func NewLowStockRule() domain.Rule {
	return lowStockRule{}
}

type lowStockRule struct{}

func (lowStockRule) Name() string { return "low_stock" }

func (r lowStockRule) Evaluate(_ context.Context, view domain.Snapshot) (domain.Result, error) {
	res := domain.Result{}
	for _, item := range view.Inventory {
		if !item.Low() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:       r.Name(),
			Severity:   domain.SeverityWarn,
			Message:    fmt.Sprintf("%s low: %v %s (alert at %v)", item.Item, item.Quantity, item.Unit, item.Threshold),
			Collection: domain.CollectionInventory,
			RecordID:   item.ID,
		})
	}
	return res, nil
}
