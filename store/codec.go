// Package store holds encoding helpers shared by the SQL backends.
// Implementations live in the sqlite, postgres and memory subpackages.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// TimestampLayout is used for every stored instant. It is fixed-width so
// stored strings sort chronologically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// stepJSON is the persisted part of a StepRecord beyond its state column.
type stepJSON struct {
	Approvers []string   `json:"approvers,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// EncodeSteps serializes approver assignments and decisions of all steps.
func EncodeSteps(a leave.Application) (string, error) {
	out := make(map[leave.Step]stepJSON, len(leave.AllSteps))
	for _, step := range leave.AllSteps {
		rec := a.Step(step)
		if rec.State == leave.StepNotRequired {
			continue
		}
		out[step] = stepJSON{Approvers: rec.Approvers, DecidedBy: rec.DecidedBy, DecidedAt: rec.DecidedAt}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}
	return string(b), nil
}

// DecodeSteps restores step records from the three state columns and the
// JSON written by EncodeSteps.
func DecodeSteps(a *leave.Application, sectionState, deptState, hrState, raw string) error {
	a.SectionHeadApproval.State = leave.StepState(sectionState)
	a.DeptHeadApproval.State = leave.StepState(deptState)
	a.HRApproval.State = leave.StepState(hrState)
	if raw == "" {
		return nil
	}

	var in map[leave.Step]stepJSON
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return fmt.Errorf("decode steps of %s: %w", a.ID, err)
	}
	for step, s := range in {
		rec := a.Step(step)
		if rec == nil {
			continue
		}
		rec.Approvers = s.Approvers
		rec.DecidedBy = s.DecidedBy
		rec.DecidedAt = s.DecidedAt
	}
	return nil
}

// FormatTime renders t for storage; the zero time becomes "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(TimestampLayout, s)
}

// ParseDate parses a stored calendar date; "" is the zero date.
func ParseDate(s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, nil
	}
	return generic.ParseDate(s)
}
