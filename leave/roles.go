package leave

import "sort"

// =============================================================================
// ROLE TABLE - The single authority for hierarchy and approval routing
// =============================================================================

// Position is the applicant's organizational position.
type Position string

const (
	PositionOfficer          Position = "officer"
	PositionSectionHead      Position = "section_head"
	PositionDeptHead         Position = "dept_head"
	PositionManager          Position = "manager"
	PositionManagingDirector Position = "managing_director"
	PositionHRManager        Position = "hr_manager"
	PositionBODChairman      Position = "bod_chairman"
)

// RoleRule is one row of the role table.
type RoleRule struct {
	// Level ranks positions; higher outranks lower.
	Level int
	// Steps are the approval steps an applicant in this position needs.
	// Empty means auto-approved.
	Steps []Step
	// ExecutiveApprover marks positions that may sign the executive step.
	ExecutiveApprover bool
}

var roleTable = map[Position]RoleRule{
	PositionOfficer:          {Level: 0, Steps: []Step{StepSectionHead, StepDeptHead}},
	PositionManager:          {Level: 1, Steps: []Step{StepExecutive}},
	PositionSectionHead:      {Level: 2, Steps: []Step{StepDeptHead}},
	PositionDeptHead:         {Level: 3, Steps: []Step{StepExecutive}},
	PositionHRManager:        {Level: 4, ExecutiveApprover: true},
	PositionManagingDirector: {Level: 5, Steps: []Step{StepExecutive}, ExecutiveApprover: true},
	PositionBODChairman:      {Level: 6},
}

// RuleFor returns the table row for p. Unknown positions, including the
// legacy "employee", use the officer row.
func RuleFor(p Position) RoleRule {
	if rule, ok := roleTable[p]; ok {
		return rule
	}
	return roleTable[PositionOfficer]
}

// IsValid reports whether p is a known position.
func (p Position) IsValid() bool {
	_, ok := roleTable[p]
	return ok
}

// CanApproveExecutive reports whether p may sign the executive step.
func (p Position) CanApproveExecutive() bool { return RuleFor(p).ExecutiveApprover }

// RequiredSteps returns a copy of the approval steps for p, in order.
func RequiredSteps(p Position) []Step {
	steps := RuleFor(p).Steps
	return append([]Step(nil), steps...)
}

// ExecutivePositions lists the positions that may sign the executive step,
// most senior first.
func ExecutivePositions() []Position {
	var out []Position
	for p, rule := range roleTable {
		if rule.ExecutiveApprover {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return roleTable[out[i]].Level > roleTable[out[j]].Level })
	return out
}
