package core

import "flockcore/pkg/domain"

type (
	Collection         = domain.Collection
	Units              = domain.Units
	Profile            = domain.Profile
	Household          = domain.Household
	Snapshot           = domain.Snapshot
	Dated              = domain.Dated
	EggRecord          = domain.EggRecord
	FeedRecord         = domain.FeedRecord
	WaterRecord        = domain.WaterRecord
	CareRecord         = domain.CareRecord
	Task               = domain.Task
	InventoryItem      = domain.InventoryItem
	Extra              = domain.Extra
	Severity           = domain.Severity
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	ErrNotFound        = domain.ErrNotFound
)

const (
	CollectionEggs      = domain.CollectionEggs
	CollectionFeed      = domain.CollectionFeed
	CollectionWater     = domain.CollectionWater
	CollectionCare      = domain.CollectionCare
	CollectionTasks     = domain.CollectionTasks
	CollectionInventory = domain.CollectionInventory
)

const (
	UnitsMetric   = domain.UnitsMetric
	UnitsImperial = domain.UnitsImperial
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
)

// NewRulesEngine returns an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
