package core

import (
	"context"
	"fmt"

	"flockcore/pkg/domain"
)

// NewTasksDueRule returns a warning rule listing tasks due on or before today.
func NewTasksDueRule(cal Calendar) domain.Rule {
	return tasksDueRule{cal: cal}
}

type tasksDueRule struct {
	cal Calendar
}

func (tasksDueRule) Name() string { return "tasks_due" }

func (r tasksDueRule) Evaluate(_ context.Context, view domain.Snapshot) (domain.Result, error) {
	res := domain.Result{}
	for _, t := range DueTasks(view, r.cal.Today()) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:       r.Name(),
			Severity:   domain.SeverityWarn,
			Message:    fmt.Sprintf("task %s due %s", t.Name, t.NextDue),
			Collection: domain.CollectionTasks,
			RecordID:   t.ID,
		})
	}
	return res, nil
}
