package core

import (
	"context"
	"time"

	"github.com/schedcore/schedcore/internal/coreerr"
	"github.com/schedcore/schedcore/internal/entity"
)

// BuildSchedulingContext loads every aggregate a solver/validator/resilience
// run needs for a date range and assembles an immutable SchedulingContext.
// Implements runqueue.ContextBuilder so a queued job can rebuild its own
// context rather than carrying one through Asynq's JSON payload.
func (c *Core) BuildSchedulingContext(ctx context.Context, start, end time.Time) (*entity.SchedulingContext, error) {
	people, err := c.db.PersonRepository().ListActive(ctx)
	if err != nil {
		return nil, coreerr.New(coreerr.KindTransient, "loading people", err)
	}
	blocks, err := c.db.BlockRepository().ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, coreerr.New(coreerr.KindTransient, "loading blocks", err)
	}
	templates, err := c.db.RotationTemplateRepository().ListAll(ctx)
	if err != nil {
		return nil, coreerr.New(coreerr.KindTransient, "loading rotation templates", err)
	}
	assignments, err := c.db.AssignmentRepository().GetByDateRange(ctx, start, end)
	if err != nil {
		return nil, coreerr.New(coreerr.KindTransient, "loading assignments", err)
	}

	var absences []entity.Absence
	for _, p := range people {
		personAbsences, err := c.db.AbsenceRepository().GetByPerson(ctx, p.ID)
		if err != nil {
			return nil, coreerr.New(coreerr.KindTransient, "loading absences", err)
		}
		for _, a := range personAbsences {
			absences = append(absences, *a)
		}
	}

	peopleVals := make([]entity.Person, 0, len(people))
	for _, p := range people {
		peopleVals = append(peopleVals, *p)
	}
	blockVals := make([]entity.Block, 0, len(blocks))
	for _, b := range blocks {
		blockVals = append(blockVals, *b)
	}
	templateVals := make([]entity.RotationTemplate, 0, len(templates))
	for _, rt := range templates {
		templateVals = append(templateVals, *rt)
	}
	assignmentVals := make([]entity.Assignment, 0, len(assignments))
	for _, a := range assignments {
		assignmentVals = append(assignmentVals, *a)
	}

	schedCtx, err := entity.BuildContext(peopleVals, blockVals, templateVals, assignmentVals, absences, nil)
	if err != nil {
		return nil, coreerr.New(coreerr.KindInvariantViolation, "assembling scheduling context", err)
	}
	return schedCtx, nil
}
