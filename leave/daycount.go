package leave

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// UnknownLeaveTypeName is reported when the fallback policy was applied.
const UnknownLeaveTypeName = "Unknown"

// DayCount is the result of measuring a request.
type DayCount struct {
	Days          int
	PolicyNote    string
	LeaveTypeName string
	Mode          generic.CountingMode
	Period        generic.Period
	// Fallback is true when the leave type was unknown and business-day
	// counting was applied.
	Fallback bool
}

// DayCounter computes the chargeable length of a leave request.
type DayCounter struct {
	types    LeaveTypes
	calendar *generic.Calendar
	logger   *zap.Logger
}

// NewDayCounter creates a counter. A nil logger is replaced by a no-op one.
func NewDayCounter(types LeaveTypes, holidays generic.HolidaySource, logger *zap.Logger) *DayCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayCounter{
		types:    types,
		calendar: generic.NewCalendar(holidays),
		logger:   logger.Named("daycount"),
	}
}

// CalculateLeaveDays counts the chargeable days of [start, end] under
// the policy of leaveTypeID.
func (c *DayCounter) CalculateLeaveDays(ctx context.Context, start, end generic.TimePoint, leaveTypeID string) (DayCount, error) {
	if leaveTypeID == "" {
		return DayCount{}, &generic.ValidationError{Field: "leave_type_id", Message: "is required"}
	}
	p, err := generic.NewPeriod(start, end)
	if err != nil {
		return DayCount{}, err
	}

	result := DayCount{Period: p}
	lt, err := c.types.GetLeaveType(ctx, leaveTypeID)
	switch {
	case generic.IsNotFound(err):
		c.logger.Warn("unknown leave type, falling back to business-day counting",
			zap.String("leave_type_id", leaveTypeID))
		result.Mode = generic.CountBusinessDays
		result.LeaveTypeName = UnknownLeaveTypeName
		result.Fallback = true
	case err != nil:
		return DayCount{}, fmt.Errorf("get leave type: %w", err)
	default:
		result.Mode = lt.Mode()
		result.LeaveTypeName = lt.Name
	}

	var holidays generic.HolidaySet
	if result.Mode == generic.CountBusinessDays {
		holidays, err = c.calendar.Snapshot(ctx, p)
		if err != nil {
			return DayCount{}, err
		}
	}

	result.Days = generic.CountDays(p, holidays, result.Mode)
	result.PolicyNote = result.Mode.Note()
	if result.Fallback {
		result.PolicyNote += " (unknown leave type, default policy)"
	}
	return result, nil
}
