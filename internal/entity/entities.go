package entity

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes trainees from faculty.
type Role string

const (
	RoleTrainee Role = "TRAINEE"
	RoleFaculty Role = "FACULTY"
)

// Session is the half-day slot within a calendar day.
type Session string

const (
	SessionAM Session = "AM"
	SessionPM Session = "PM"
)

// ActivityType is the canonical, closed set of rotation activities. Values
// are canonicalized at context-construction time instead of being carried
// forward as free-form strings, so "clinic" and "outpatient" can never both
// exist for the same kind of assignment.
type ActivityType string

const (
	ActivityInpatient  ActivityType = "inpatient"
	ActivityClinic     ActivityType = "clinic"
	ActivityElective   ActivityType = "elective"
	ActivityAbsence    ActivityType = "absence"
	ActivityConference ActivityType = "conference"
	ActivityCall       ActivityType = "call"
	ActivityProcedure  ActivityType = "procedure"
)

// knownActivityTypes backs ParseActivityType; kept as a slice rather than a
// map so error messages and iteration order stay stable.
var knownActivityTypes = []ActivityType{
	ActivityInpatient, ActivityClinic, ActivityElective,
	ActivityAbsence, ActivityConference, ActivityCall, ActivityProcedure,
}

// ParseActivityType canonicalizes a raw string into an ActivityType,
// rejecting anything outside the known set.
func ParseActivityType(raw string) (ActivityType, error) {
	for _, a := range knownActivityTypes {
		if string(a) == raw {
			return a, nil
		}
	}
	return "", ErrUnknownActivityType
}

// IsOnDuty reports whether the activity counts toward consecutive-day and
// duty-hour accumulation.
func (a ActivityType) IsOnDuty() bool {
	switch a {
	case ActivityInpatient, ActivityClinic, ActivityCall, ActivityProcedure, ActivityConference:
		return true
	default:
		return false
	}
}

// Granularity is the unit at which a RotationTemplate is scheduled.
type Granularity string

const (
	GranularityHalfBlock Granularity = "half-block"
	GranularityFullBlock Granularity = "full-block"
	GranularityTwoWeek   Granularity = "half-week-2w"
)

// HoursAttribution governs whether at-home call contributes its nominal
// template hours toward duty-hour totals or only actualized hours reported
// after the fact. Defaults to NominalDefault.
type HoursAttribution string

const (
	HoursNominalDefault HoursAttribution = "nominal_default"
	HoursActualizedOnly HoursAttribution = "actualized_only"
)

// Person is a trainee or faculty member.
type Person struct {
	ID          PersonID
	Role        Role
	PGYLevel    int // 0 for faculty; 1..N for trainees
	Credentials map[string]bool
	Active      bool
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

func (p *Person) IsDeleted() bool { return p.DeletedAt != nil }

func (p *Person) HasCredential(tag string) bool {
	if p.Credentials == nil {
		return false
	}
	return p.Credentials[tag]
}

func (p *Person) SoftDelete(now time.Time) {
	p.DeletedAt = &now
}

// Block is an atomic half-day scheduling unit, created once by a date-range
// generator and never mutated afterward.
type Block struct {
	ID      BlockID
	Date    time.Time
	Session Session
}

// Before orders blocks chronologically, with AM preceding PM on the same date.
func (b Block) Before(other Block) bool {
	if !b.Date.Equal(other.Date) {
		return b.Date.Before(other.Date)
	}
	return b.Session == SessionAM && other.Session == SessionPM
}

// CoverageRequirement describes headcount bounds for a RotationTemplate.
type CoverageRequirement struct {
	Min    int
	Target int
	Max    int
}

// EligibilityPredicate describes who may be assigned to a RotationTemplate.
type EligibilityPredicate struct {
	Roles               []Role // empty = any role
	MinPGY, MaxPGY      int    // 0,0 = unrestricted
	RequiredCredentials []string
}

// Matches reports whether a Person satisfies the predicate.
func (e EligibilityPredicate) Matches(p Person) bool {
	if len(e.Roles) > 0 {
		ok := false
		for _, r := range e.Roles {
			if p.Role == r {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if p.Role == RoleTrainee {
		if e.MinPGY > 0 && p.PGYLevel < e.MinPGY {
			return false
		}
		if e.MaxPGY > 0 && p.PGYLevel > e.MaxPGY {
			return false
		}
	}
	for _, c := range e.RequiredCredentials {
		if !p.HasCredential(c) {
			return false
		}
	}
	return true
}

// RotationTemplate is the kind of work performed in a block.
type RotationTemplate struct {
	ID               RotationTemplateID
	Name             string
	ActivityType     ActivityType
	Granularity      Granularity
	Eligibility      EligibilityPredicate
	Coverage         CoverageRequirement
	DutyHoursAM      float64
	DutyHoursPM      float64
	AtHomeCall       bool
	HoursAttribution HoursAttribution
}

// DutyHours returns the declared duty-hour cost for a session.
func (rt RotationTemplate) DutyHours(s Session) float64 {
	if s == SessionAM {
		return rt.DutyHoursAM
	}
	return rt.DutyHoursPM
}

// AssignmentSource tracks provenance so every assignment is traceable to a
// solver run, a swap, or a manual override.
type AssignmentSource string

const (
	AssignmentSourceSolver AssignmentSource = "SOLVER"
	AssignmentSourceSwap   AssignmentSource = "SWAP"
	AssignmentSourceManual AssignmentSource = "MANUAL"
)

// Assignment is the fact that a Person is scheduled to a RotationTemplate in
// a Block.
type Assignment struct {
	ID                 AssignmentID
	PersonID           PersonID
	BlockID            BlockID
	RotationTemplateID RotationTemplateID
	ActualHours        *float64 // actualized duty hours, when reported
	CreatedAt          time.Time
	CreatedBy          string
	SourceRunID        *RunID
	SourceSwapID       *SwapRecordID
	Source             AssignmentSource
}

// AssignmentKey is the (person, block) uniqueness key: a person holds at
// most one assignment per block.
type AssignmentKey struct {
	PersonID PersonID
	BlockID  BlockID
}

func (a Assignment) Key() AssignmentKey {
	return AssignmentKey{PersonID: a.PersonID, BlockID: a.BlockID}
}

// AssignmentSet is a candidate or committed collection of assignments,
// shared across the constraint, solver, and swap packages.
type AssignmentSet []Assignment

// ByPersonBlock indexes the set for O(1) uniqueness lookups.
func (s AssignmentSet) ByPersonBlock() map[AssignmentKey]Assignment {
	out := make(map[AssignmentKey]Assignment, len(s))
	for _, a := range s {
		out[a.Key()] = a
	}
	return out
}

// ForPerson filters to one person's assignments, preserving order.
func (s AssignmentSet) ForPerson(id PersonID) AssignmentSet {
	var out AssignmentSet
	for _, a := range s {
		if a.PersonID == id {
			out = append(out, a)
		}
	}
	return out
}

// ForBlock filters to one block's assignments.
func (s AssignmentSet) ForBlock(id BlockID) AssignmentSet {
	var out AssignmentSet
	for _, a := range s {
		if a.BlockID == id {
			out = append(out, a)
		}
	}
	return out
}

// AbsenceReason enumerates why a Person is unavailable.
type AbsenceReason string

const (
	AbsenceLeave      AbsenceReason = "leave"
	AbsenceTDY        AbsenceReason = "tdy"
	AbsenceDeployment AbsenceReason = "deployment"
	AbsenceSick       AbsenceReason = "sick"
)

// Absence is a scheduled unavailability for a Person over a date range.
type Absence struct {
	ID       AbsenceID
	PersonID PersonID
	Start    time.Time
	End      time.Time
	Reason   AbsenceReason
}

// Covers reports whether the absence window includes the given date.
func (ab Absence) Covers(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(ab.Start.Truncate(24*time.Hour)) && !d.After(ab.End.Truncate(24*time.Hour))
}

// PreferenceVector holds a person's hard blackouts and soft weights. Used by
// the optimization tier of the constraint library and by swap compatibility
// scoring's preference-alignment term.
type PreferenceVector struct {
	PersonID        PersonID
	Blackouts       map[BlockID]bool
	TemplateWeights map[RotationTemplateID]float64 // higher = more preferred
}

func (p PreferenceVector) IsBlackout(b BlockID) bool {
	if p.Blackouts == nil {
		return false
	}
	return p.Blackouts[b]
}

func (p PreferenceVector) WeightFor(t RotationTemplateID) float64 {
	if p.TemplateWeights == nil {
		return 0
	}
	return p.TemplateWeights[t]
}

// NewAssignmentID allocates a fresh identifier.
func NewAssignmentID() AssignmentID { return uuid.New() }
