package entity

import "sort"

// SchedulingContext is the immutable snapshot of entities the constraint
// library, solver, validator, and resilience analyzer all operate over. It
// is built once per operation via BuildContext and never mutated afterward;
// a new context is built for each run.
type SchedulingContext struct {
	People             map[PersonID]Person
	Blocks             map[BlockID]Block
	RotationTemplates  map[RotationTemplateID]RotationTemplate
	Assignments        AssignmentSet
	Absences           []Absence
	Preferences        map[PersonID]PreferenceVector

	orderedBlocks []Block
}

// BuildContext assembles a SchedulingContext from repository-loaded slices,
// indexing them by ID and validating cross-references. An assignment whose
// person, block, or rotation template is not among the given slices is
// rejected rather than silently dropped, as is a second assignment for the
// same (person, block) pair.
func BuildContext(
	people []Person,
	blocks []Block,
	templates []RotationTemplate,
	assignments []Assignment,
	absences []Absence,
	preferences []PreferenceVector,
) (*SchedulingContext, error) {
	ctx := &SchedulingContext{
		People:            make(map[PersonID]Person, len(people)),
		Blocks:            make(map[BlockID]Block, len(blocks)),
		RotationTemplates: make(map[RotationTemplateID]RotationTemplate, len(templates)),
		Preferences:       make(map[PersonID]PreferenceVector, len(preferences)),
	}

	for _, p := range people {
		ctx.People[p.ID] = p
	}
	for _, b := range blocks {
		ctx.Blocks[b.ID] = b
	}
	for _, rt := range templates {
		ctx.RotationTemplates[rt.ID] = rt
	}
	for _, pv := range preferences {
		ctx.Preferences[pv.PersonID] = pv
	}

	for _, a := range assignments {
		if _, ok := ctx.People[a.PersonID]; !ok {
			return nil, ErrPersonNotFound
		}
		if _, ok := ctx.Blocks[a.BlockID]; !ok {
			return nil, ErrBlockNotFound
		}
		if _, ok := ctx.RotationTemplates[a.RotationTemplateID]; !ok {
			return nil, ErrRotationTemplateNotFound
		}
	}
	ctx.Assignments = assignments
	ctx.Absences = absences

	ctx.orderedBlocks = make([]Block, 0, len(blocks))
	for _, b := range blocks {
		ctx.orderedBlocks = append(ctx.orderedBlocks, b)
	}
	sort.Slice(ctx.orderedBlocks, func(i, j int) bool {
		return ctx.orderedBlocks[i].Before(ctx.orderedBlocks[j])
	})

	if dup := ctx.Assignments.ByPersonBlock(); len(dup) != len(ctx.Assignments) {
		return nil, ErrDuplicateAssignment
	}

	return ctx, nil
}

// OrderedBlocks returns blocks sorted chronologically, AM before PM.
func (c *SchedulingContext) OrderedBlocks() []Block {
	return c.orderedBlocks
}

// IsAbsent reports whether a person has an absence covering the block's date.
func (c *SchedulingContext) IsAbsent(personID PersonID, blockID BlockID) bool {
	block, ok := c.Blocks[blockID]
	if !ok {
		return false
	}
	for _, ab := range c.Absences {
		if ab.PersonID == personID && ab.Covers(block.Date) {
			return true
		}
	}
	return false
}

// RotationTemplateByID fetches a template by ID.
func (c *SchedulingContext) RotationTemplateByID(id RotationTemplateID) (RotationTemplate, bool) {
	rt, ok := c.RotationTemplates[id]
	return rt, ok
}
