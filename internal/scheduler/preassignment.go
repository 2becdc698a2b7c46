package scheduler

import (
	"strings"
	"time"

	"github.com/schedcore/schedcore/internal/entity"
)

// PGYClinicDayRule pins a PGY level to a fixed weekday/session clinic slot.
// Institutional, configurable per §4.4.4 — not hard-coded into the rule
// engine itself.
type PGYClinicDayRule struct {
	PGY     int
	Weekday time.Weekday
	Session entity.Session
}

// PreassignmentConfig is the configuration table the pre-assignment rules
// read from, rather than encoding their parameters as literals in code.
type PreassignmentConfig struct {
	PGYClinicDays          []PGYClinicDayRule
	PostFMITBlockDays      int // Sunday-after-FMIT blackout length
	NightFloatPostCallDays int
}

// DefaultPreassignmentConfig matches spec.md §4.4.4 exactly.
func DefaultPreassignmentConfig() PreassignmentConfig {
	return PreassignmentConfig{
		PGYClinicDays: []PGYClinicDayRule{
			{PGY: 1, Weekday: time.Wednesday, Session: entity.SessionAM},
			{PGY: 2, Weekday: time.Tuesday, Session: entity.SessionPM},
			{PGY: 3, Weekday: time.Monday, Session: entity.SessionPM},
		},
		PostFMITBlockDays:      3,
		NightFloatPostCallDays: 1,
	}
}

// PreassignmentRuleSet runs the block-assigned rules ahead of the solver,
// fixing the preserve_set the solver must never touch.
type PreassignmentRuleSet struct {
	cfg PreassignmentConfig
}

func NewPreassignmentRuleSet(cfg PreassignmentConfig) *PreassignmentRuleSet {
	return &PreassignmentRuleSet{cfg: cfg}
}

// Apply runs every rule against the context and returns the concatenated
// block-assigned output. Rules are independent: each sees the same context,
// so a person matched by one rule can be matched again by a later rule.
func (rs *PreassignmentRuleSet) Apply(ctx *entity.SchedulingContext) entity.AssignmentSet {
	var out entity.AssignmentSet
	out = append(out, rs.fmitFacultyRotation(ctx)...)
	out = append(out, rs.nightFloatPairing(ctx)...)
	out = append(out, rs.nicuFridayPMLock(ctx)...)
	out = append(out, rs.pgyClinicDays(ctx)...)
	return out
}

func matchByName(ctx *entity.SchedulingContext, substr string) []entity.RotationTemplate {
	var out []entity.RotationTemplate
	for _, rt := range ctx.RotationTemplates {
		if strings.Contains(strings.ToUpper(rt.Name), strings.ToUpper(substr)) {
			out = append(out, rt)
		}
	}
	return out
}

func eligiblePeople(ctx *entity.SchedulingContext, rt entity.RotationTemplate) []entity.Person {
	var out []entity.Person
	for _, p := range ctx.People {
		if p.Active && !p.IsDeleted() && rt.Eligibility.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// fmitFacultyRotation assigns one faculty member per academic week to the
// FMIT rotation template, round-robining so no faculty covers two
// consecutive weeks, and preserves the rule's mandatory Fri/Sat call
// already encoded on the template's own blocks (the template's coverage
// bounds enforce headcount; this rule only picks who).
func (rs *PreassignmentRuleSet) fmitFacultyRotation(ctx *entity.SchedulingContext) entity.AssignmentSet {
	var out entity.AssignmentSet
	for _, rt := range matchByName(ctx, "FMIT") {
		faculty := eligiblePeople(ctx, rt)
		if len(faculty) == 0 {
			continue
		}
		weeks := groupByWeek(blocksForTemplate(ctx, rt))
		var lastFaculty entity.PersonID
		idx := 0
		for _, week := range weeks {
			person := faculty[idx%len(faculty)]
			if len(faculty) > 1 && person.ID == lastFaculty {
				idx++
				person = faculty[idx%len(faculty)]
			}
			lastFaculty = person.ID
			idx++
			for _, b := range week {
				out = append(out, blockAssignment(person.ID, b.ID, rt.ID, "scheduler:fmit_faculty_rotation"))
			}
		}
	}
	return out
}

// nightFloatPairing assigns exactly one trainee to each 14-day group of the
// blocks already carrying a Night Float assignment, cycling through the
// eligible trainees group by group. Trainees are not paired across mirrored
// halves of a 4-week block.
func (rs *PreassignmentRuleSet) nightFloatPairing(ctx *entity.SchedulingContext) entity.AssignmentSet {
	var out entity.AssignmentSet
	for _, rt := range matchByName(ctx, "NIGHT FLOAT") {
		trainees := eligiblePeople(ctx, rt)
		if len(trainees) == 0 {
			continue
		}
		halves := groupByFortnight(blocksForTemplate(ctx, rt))
		for i, half := range halves {
			person := trainees[i%len(trainees)]
			for _, b := range half {
				out = append(out, blockAssignment(person.ID, b.ID, rt.ID, "scheduler:night_float_pairing"))
			}
		}
	}
	return out
}

// nicuFridayPMLock locks the NICU trainee to a Friday PM clinic slot for
// the duration of their NICU block.
func (rs *PreassignmentRuleSet) nicuFridayPMLock(ctx *entity.SchedulingContext) entity.AssignmentSet {
	var out entity.AssignmentSet
	nicuTemplates := matchByName(ctx, "NICU")
	clinicTemplates := make([]entity.RotationTemplate, 0)
	for _, rt := range ctx.RotationTemplates {
		if rt.ActivityType == entity.ActivityClinic {
			clinicTemplates = append(clinicTemplates, rt)
		}
	}
	for _, rt := range nicuTemplates {
		for _, a := range ctx.Assignments {
			b, ok := ctx.Blocks[a.BlockID]
			if a.RotationTemplateID != rt.ID || !ok || b.Date.Weekday() != time.Friday || b.Session != entity.SessionPM {
				continue
			}
			p, ok := ctx.People[a.PersonID]
			if !ok {
				continue
			}
			for _, clinic := range clinicTemplates {
				if clinic.Eligibility.Matches(p) {
					out = append(out, blockAssignment(p.ID, b.ID, clinic.ID, "scheduler:nicu_friday_pm_lock"))
					break
				}
			}
		}
	}
	return out
}

// pgyClinicDays pins each PGY level's weekly clinic day per the
// configuration table.
func (rs *PreassignmentRuleSet) pgyClinicDays(ctx *entity.SchedulingContext) entity.AssignmentSet {
	var out entity.AssignmentSet
	for _, rule := range rs.cfg.PGYClinicDays {
		for _, rt := range ctx.RotationTemplates {
			if rt.ActivityType != entity.ActivityClinic {
				continue
			}
			for _, p := range ctx.People {
				if p.Role != entity.RoleTrainee || p.PGYLevel != rule.PGY || !p.Active || p.IsDeleted() {
					continue
				}
				if !rt.Eligibility.Matches(p) {
					continue
				}
				for _, b := range ctx.OrderedBlocks() {
					if b.Date.Weekday() == rule.Weekday && b.Session == rule.Session {
						out = append(out, blockAssignment(p.ID, b.ID, rt.ID, "scheduler:pgy_clinic_day"))
					}
				}
			}
		}
	}
	return out
}

func blockAssignment(personID entity.PersonID, blockID entity.BlockID, templateID entity.RotationTemplateID, createdBy string) entity.Assignment {
	return entity.Assignment{
		ID:                 entity.NewAssignmentID(),
		PersonID:           personID,
		BlockID:            blockID,
		RotationTemplateID: templateID,
		CreatedBy:          createdBy,
		Source:             entity.AssignmentSourceSolver,
	}
}

func blocksForTemplate(ctx *entity.SchedulingContext, rt entity.RotationTemplate) []entity.Block {
	assigned := ctx.Assignments
	seen := make(map[entity.BlockID]bool)
	var out []entity.Block
	for _, a := range assigned {
		if a.RotationTemplateID != rt.ID || seen[a.BlockID] {
			continue
		}
		if b, ok := ctx.Blocks[a.BlockID]; ok {
			out = append(out, b)
			seen[a.BlockID] = true
		}
	}
	return out
}

func groupByWeek(blocks []entity.Block) [][]entity.Block {
	weeks := make(map[int][]entity.Block)
	var order []int
	for _, b := range blocks {
		_, week := b.Date.ISOWeek()
		if _, ok := weeks[week]; !ok {
			order = append(order, week)
		}
		weeks[week] = append(weeks[week], b)
	}
	out := make([][]entity.Block, 0, len(order))
	for _, w := range order {
		out = append(out, weeks[w])
	}
	return out
}

func groupByFortnight(blocks []entity.Block) [][]entity.Block {
	const fortnight = 14 * 24 * time.Hour
	if len(blocks) == 0 {
		return nil
	}
	halves := make(map[int64][]entity.Block)
	var order []int64
	base := blocks[0].Date
	for _, b := range blocks {
		idx := int64(b.Date.Sub(base) / fortnight)
		if _, ok := halves[idx]; !ok {
			order = append(order, idx)
		}
		halves[idx] = append(halves[idx], b)
	}
	out := make([][]entity.Block, 0, len(order))
	for _, idx := range order {
		out = append(out, halves[idx])
	}
	return out
}
