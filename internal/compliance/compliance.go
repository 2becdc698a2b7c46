// Package compliance validates a committed set of assignments against
// rolling-window duty-hour and consecutive-duty regulatory rules,
// independent of whatever produced the assignments (solver, swap, or manual
// edit).
package compliance

import (
	"sort"
	"time"

	"github.com/schedcore/schedcore/internal/entity"
	"github.com/schedcore/schedcore/internal/validation"
)

// RollingWindowDays is the span (in days) over which duty hours are accumulated, per the
// regulatory rule this validator encodes.
const RollingWindowDays = 28

// MaxHoursPerWindow is the duty-hour ceiling within any RollingWindowDays
// period.
const MaxHoursPerWindow = 80.0 * (RollingWindowDays / 7)

// MaxConsecutiveOnDutyDays caps consecutive on-duty calendar days.
const MaxConsecutiveOnDutyDays = 6

// MinRestHoursAfterWindow is unused directly here but documents the
// accompanying rest-period rule enforced by constraint.MinRestAfterOnCallConstraint.
const MinRestHoursAfterWindow = 8.0

// Validator checks a SchedulingContext's committed assignments for
// regulatory compliance over every rolling window in the context's date
// range.
type Validator struct {
	clock entity.Clock
}

func NewValidator(clock entity.Clock) *Validator {
	return &Validator{clock: clock}
}

// dailyHours returns one person's on-duty hours summed per calendar day,
// as a map keyed by the day.
func (v *Validator) dailyHours(ctx *entity.SchedulingContext, personID entity.PersonID) map[time.Time]float64 {
	totals := make(map[time.Time]float64)
	for _, a := range ctx.Assignments.ForPerson(personID) {
		rt, ok := ctx.RotationTemplateByID(a.RotationTemplateID)
		if !ok || !rt.ActivityType.IsOnDuty() {
			continue
		}
		block, ok := ctx.Blocks[a.BlockID]
		if !ok {
			continue
		}
		day := block.Date.Truncate(24 * time.Hour)

		hours := rt.DutyHours(block.Session)
		if rt.AtHomeCall && rt.HoursAttribution == entity.HoursActualizedOnly && a.ActualHours != nil {
			hours = *a.ActualHours
		}
		totals[day] += hours
	}
	return totals
}

// Validate runs the rolling-window check for every person in the context,
// recovering from any per-person evaluation fault (VALIDATOR_FAULT) by
// logging it as a warning and continuing with the remaining people rather
// than aborting the whole run.
func (v *Validator) Validate(ctx *entity.SchedulingContext) *validation.Result {
	result := validation.NewResult()

	for personID := range ctx.People {
		v.validatePerson(ctx, personID, result)
	}

	return result
}

func (v *Validator) validatePerson(ctx *entity.SchedulingContext, personID entity.PersonID, result *validation.Result) {
	defer func() {
		if r := recover(); r != nil {
			result.AddWarningWithContext(validation.CodeValidatorFault,
				"compliance check failed for person; treated as unverified rather than aborting the run",
				map[string]interface{}{"person_id": personID.String()})
		}
	}()

	daily := v.dailyHours(ctx, personID)
	if len(daily) == 0 {
		return
	}

	days := make([]time.Time, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	checkRollingWindow(personID, days, daily, result)
	checkConsecutiveOnDuty(personID, days, result)
}

func checkRollingWindow(personID entity.PersonID, days []time.Time, daily map[time.Time]float64, result *validation.Result) {
	first, last := days[0], days[len(days)-1]

	for start := first; !start.After(last); start = start.AddDate(0, 0, 1) {
		end := start.AddDate(0, 0, RollingWindowDays-1)
		total := 0.0
		for _, d := range days {
			if !d.Before(start) && !d.After(end) {
				total += daily[d]
			}
		}
		if total > MaxHoursPerWindow {
			result.AddErrorWithContext(validation.CodeRollingWindowExceeded,
				"rolling 28-day duty-hour window exceeds the regulatory limit",
				map[string]interface{}{
					"person_id":    personID.String(),
					"window_start": start.Format("2006-01-02"),
					"window_end":   end.Format("2006-01-02"),
					"total_hours":  total,
					"limit_hours":  MaxHoursPerWindow,
				})
		}
	}
}

func checkConsecutiveOnDuty(personID entity.PersonID, days []time.Time, result *validation.Result) {
	run := 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > MaxConsecutiveOnDutyDays {
			result.AddErrorWithContext(validation.CodeConsecutiveDutyLimit,
				"consecutive on-duty day limit exceeded",
				map[string]interface{}{
					"person_id":  personID.String(),
					"run_length": run,
					"ending":     days[i].Format("2006-01-02"),
				})
		}
	}
}
