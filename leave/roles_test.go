package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

func TestRequiredSteps_ByPosition(t *testing.T) {
	tests := []struct {
		position leave.Position
		want     []leave.Step
	}{
		{leave.PositionOfficer, []leave.Step{leave.StepSectionHead, leave.StepDeptHead}},
		{"employee", []leave.Step{leave.StepSectionHead, leave.StepDeptHead}},
		{leave.PositionSectionHead, []leave.Step{leave.StepDeptHead}},
		{leave.PositionDeptHead, []leave.Step{leave.StepExecutive}},
		{leave.PositionManager, []leave.Step{leave.StepExecutive}},
		{leave.PositionManagingDirector, []leave.Step{leave.StepExecutive}},
		{leave.PositionHRManager, nil},
		{leave.PositionBODChairman, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.position), func(t *testing.T) {
			got := leave.RequiredSteps(tt.position)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequiredSteps_ReturnsCopy(t *testing.T) {
	steps := leave.RequiredSteps(leave.PositionOfficer)
	steps[0] = leave.StepExecutive

	assert.Equal(t, leave.StepSectionHead, leave.RequiredSteps(leave.PositionOfficer)[0])
}

func TestExecutivePositions(t *testing.T) {
	assert.Equal(t,
		[]leave.Position{leave.PositionManagingDirector, leave.PositionHRManager},
		leave.ExecutivePositions())
	assert.True(t, leave.PositionHRManager.CanApproveExecutive())
	assert.False(t, leave.PositionDeptHead.CanApproveExecutive())
}

func TestPosition_IsValid(t *testing.T) {
	assert.True(t, leave.PositionBODChairman.IsValid())
	assert.False(t, leave.Position("employee").IsValid())
}

func TestParseStep(t *testing.T) {
	step, err := leave.ParseStep("hr")
	require.NoError(t, err)
	assert.Equal(t, leave.StepExecutive, step)

	step, err = leave.ParseStep("dept_head")
	require.NoError(t, err)
	assert.Equal(t, leave.StepDeptHead, step)

	_, err = leave.ParseStep("board")
	assert.Error(t, err)
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, leave.StatusPending.CanTransitionTo(leave.StatusApproved))
	assert.True(t, leave.StatusApproved.CanTransitionTo(leave.StatusCancelled))
	assert.False(t, leave.StatusApproved.CanTransitionTo(leave.StatusRejected))
	assert.False(t, leave.StatusRejected.CanTransitionTo(leave.StatusApproved))
	assert.False(t, leave.StatusCancelled.CanTransitionTo(leave.StatusPending))
	assert.False(t, leave.StatusApproved.AcceptsDecisions())
}
