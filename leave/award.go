/*
award.go - Annual leave award engine

PURPOSE:
  Materializes the annual leave ledger for a financial year: one row and
  one audit log entry per permanent, active employee. Runs once per year,
  started by HR or by the award scheduler in the first week of July.

PRORATION:
  hire <= July 1            => full entitlement
  July 1 < hire <= June 30  => max(1, round(remaining / total * entitlement))
  hire > June 30            => skipped (not yet employed this year)

  remaining = hire .. June 30 inclusive, total = 365 or 366.
  Rounding is half-up; the 1-day floor keeps very late hires from
  receiving a zero award.

  Example (2024-2025, 365 days):
    hire 2024-09-01 => 303/365 x 30 = 24.9 => 25 days, prorated

IDEMPOTENCY:
  The "already started" check and every insert share one transaction,
  after LockFinancialYear. Two concurrent runs cannot both pass the guard.

PARTIAL FAILURE:
  Each employee's row and log entry are inserted as one unit. A failed
  employee is recorded and the run continues; successful inserts are
  committed and the caller receives *generic.PartialBatchFailure.

SEE ALSO:
  - registry.go: IsYearStarted
  - api/scheduler.go: Automatic runs
*/
package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// StatutoryAnnualDays is the full annual leave entitlement.
const StatutoryAnnualDays = 30

// SystemActor is the actor recorded for scheduler-triggered runs.
const SystemActor = "system"

// =============================================================================
// AWARD CALCULATION - Pure
// =============================================================================

// Award is the computed entitlement for one employee.
type Award struct {
	Days          int
	Type          AwardType
	Rationale     string
	RemainingDays int
	TotalDays     int
}

// ProrateDays returns max(1, round-half-up(remaining * entitlement / total)).
func ProrateDays(remaining, total, entitlement int) int {
	if total <= 0 {
		return 1
	}
	days := decimal.NewFromInt(int64(remaining)).
		Mul(decimal.NewFromInt(int64(entitlement))).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).
		IntPart()
	return max(1, int(days))
}

// ComputeAward decides the award for an employee hired on hireDate.
// ok is false when the employee was hired after the financial year ends.
func ComputeAward(hireDate generic.TimePoint, fy generic.FinancialYear, entitlement int) (award Award, ok bool) {
	period := fy.Period()
	total := period.Len()

	if hireDate.BeforeOrEqual(period.Start) {
		return Award{
			Days:          entitlement,
			Type:          AwardFull,
			Rationale:     fmt.Sprintf("Full year award: %d days", entitlement),
			RemainingDays: total,
			TotalDays:     total,
		}, true
	}
	if hireDate.After(period.End) {
		return Award{}, false
	}

	remaining := generic.DaysInclusive(hireDate, period.End)
	days := ProrateDays(remaining, total, entitlement)
	return Award{
		Days: days,
		Type: AwardProrated,
		Rationale: fmt.Sprintf("Pro-rated for hire date %s: %d/%d days x %d = %d days",
			hireDate, remaining, total, entitlement, days),
		RemainingDays: remaining,
		TotalDays:     total,
	}, true
}

// =============================================================================
// AWARD RUN
// =============================================================================

// AwardRun describes one invocation.
type AwardRun struct {
	Year    string
	ActorID string
	Method  AwardMethod
}

// AwardDetail is one successful award.
type AwardDetail struct {
	EmployeeID   string
	EmployeeName string
	HireDate     generic.TimePoint
	DaysAwarded  int
	AwardType    AwardType
	Rationale    string
}

// AwardSkip is an eligible employee that received nothing, with the reason.
type AwardSkip struct {
	EmployeeID string
	Reason     string
}

// AwardResult aggregates a run. Errors lists every employee whose insert
// failed; it is never silently truncated.
type AwardResult struct {
	FinancialYear  string
	Method         AwardMethod
	AwardedCount   int
	TotalProcessed int
	Details        []AwardDetail
	Skipped        []AwardSkip
	Errors         []generic.ItemFailure
}

// AwardConfig configures the engine.
type AwardConfig struct {
	EntitlementDays   int
	AnnualLeaveTypeID string
}

// AwardEngine runs financial year award batches.
type AwardEngine struct {
	store       TxStore
	directory   Directory
	notifier    Notifier
	clock       generic.Clock
	logger      *zap.Logger
	entitlement int
	leaveTypeID string
}

// NewAwardEngine creates an engine. Zero config values use the statutory
// defaults.
func NewAwardEngine(store TxStore, directory Directory, notifier Notifier, clock generic.Clock, logger *zap.Logger, cfg AwardConfig) *AwardEngine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EntitlementDays <= 0 {
		cfg.EntitlementDays = StatutoryAnnualDays
	}
	if cfg.AnnualLeaveTypeID == "" {
		cfg.AnnualLeaveTypeID = DefaultAnnualLeaveTypeID
	}
	return &AwardEngine{
		store:       store,
		directory:   directory,
		notifier:    notifier,
		clock:       clock,
		logger:      logger.Named("award"),
		entitlement: cfg.EntitlementDays,
		leaveTypeID: cfg.AnnualLeaveTypeID,
	}
}

// StartFinancialYear is the manual HR-triggered run.
func (e *AwardEngine) StartFinancialYear(ctx context.Context, year, actorID string) (*AwardResult, error) {
	return e.Run(ctx, AwardRun{Year: year, ActorID: actorID, Method: AwardManual})
}

// Run awards annual leave for run.Year.
func (e *AwardEngine) Run(ctx context.Context, run AwardRun) (*AwardResult, error) {
	if err := requireActor(run.ActorID); err != nil {
		return nil, err
	}
	fy, err := generic.ParseFinancialYear(run.Year)
	if err != nil {
		return nil, err
	}
	if run.Method == "" {
		run.Method = AwardManual
	}

	employees, err := e.directory.ListEmployees(ctx, EmployeeFilter{
		EmploymentType: EmploymentPermanent,
		Status:         StatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible employees: %w", err)
	}

	result := &AwardResult{FinancialYear: fy.String(), Method: run.Method}
	err = e.store.WithTx(ctx, func(tx Store) error {
		if err := tx.LockFinancialYear(ctx, fy.String()); err != nil {
			return fmt.Errorf("lock financial year %s: %w", fy, err)
		}
		started, err := yearStarted(ctx, tx, fy.String())
		if err != nil {
			return err
		}
		if started {
			return &DuplicateYearError{Year: fy.String()}
		}

		for _, emp := range employees {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !emp.EligibleForAnnualAward() {
				continue
			}
			result.TotalProcessed++
			e.awardOne(ctx, tx, fy, run, emp, result)
		}
		return nil
	})
	if err != nil {
		var dup *DuplicateYearError
		if errors.As(err, &dup) {
			e.logger.Info("financial year already started", zap.String("year", fy.String()))
		} else {
			e.logger.Error("award run failed", zap.String("year", fy.String()), zap.Error(err))
		}
		return nil, err
	}

	e.logger.Info("award run completed",
		zap.String("year", result.FinancialYear),
		zap.String("method", string(run.Method)),
		zap.String("actor", run.ActorID),
		zap.Int("awarded", result.AwardedCount),
		zap.Int("processed", result.TotalProcessed),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("errors", len(result.Errors)))

	e.notifyHR(ctx, result)

	if len(result.Errors) > 0 {
		return result, &generic.PartialBatchFailure{
			Operation: "award financial year " + result.FinancialYear,
			Succeeded: result.AwardedCount,
			Failures:  result.Errors,
		}
	}
	return result, nil
}

func (e *AwardEngine) awardOne(ctx context.Context, tx Store, fy generic.FinancialYear, run AwardRun, emp Employee, result *AwardResult) {
	if emp.HireDate.IsZero() {
		result.Errors = append(result.Errors, generic.ItemFailure{
			ItemID: emp.ID,
			Err:    &generic.ValidationError{Field: "hire_date", Message: "is missing"},
		})
		return
	}

	award, ok := ComputeAward(emp.HireDate, fy, e.entitlement)
	if !ok {
		result.Skipped = append(result.Skipped, AwardSkip{
			EmployeeID: emp.ID,
			Reason:     fmt.Sprintf("hired %s, after the end of %s", emp.HireDate, fy),
		})
		return
	}

	now := e.clock.Now()
	balance := LeaveBalance{
		EmployeeID:    emp.ID,
		LeaveTypeID:   e.leaveTypeID,
		FinancialYear: fy.String(),
		Entitled:      award.Days,
		CreatedAt:     now,
		UpdatedAt:     now,
		Exists:        true,
	}
	balance.recompute()

	entry := AwardLogEntry{
		ID:            uuid.NewString(),
		EmployeeID:    emp.ID,
		FinancialYear: fy.String(),
		LeaveTypeID:   e.leaveTypeID,
		DaysAwarded:   award.Days,
		AwardType:     award.Type,
		Rationale:     award.Rationale,
		AwardedBy:     run.ActorID,
		AwardMethod:   run.Method,
		Notes:         awardNotes(run.Method),
		AwardedAt:     now,
	}

	if err := tx.CreateAward(ctx, balance, entry); err != nil {
		e.logger.Warn("award insert failed", zap.String("employee_id", emp.ID), zap.Error(err))
		result.Errors = append(result.Errors, generic.ItemFailure{ItemID: emp.ID, Err: err})
		return
	}

	result.AwardedCount++
	result.Details = append(result.Details, AwardDetail{
		EmployeeID:   emp.ID,
		EmployeeName: emp.Name,
		HireDate:     emp.HireDate,
		DaysAwarded:  award.Days,
		AwardType:    award.Type,
		Rationale:    award.Rationale,
	})
}

func awardNotes(method AwardMethod) string {
	if method == AwardAutomatic {
		return "Awarded automatically at financial year start"
	}
	return "Financial year started manually"
}

func (e *AwardEngine) notifyHR(ctx context.Context, result *AwardResult) {
	hr, err := e.directory.ListEmployees(ctx, EmployeeFilter{
		Status:    StatusActive,
		Positions: []Position{PositionHRManager},
	})
	if err != nil {
		e.logger.Warn("could not resolve HR managers for award summary", zap.Error(err))
		return
	}
	if len(hr) == 0 {
		return
	}

	msg := fmt.Sprintf("Annual leave for %s has been awarded to %d of %d employees (%d skipped, %d errors).",
		result.FinancialYear, result.AwardedCount, result.TotalProcessed, len(result.Skipped), len(result.Errors))
	batch := make([]Notification, 0, len(hr))
	for _, h := range hr {
		batch = append(batch, Notification{
			RecipientID: h.ID,
			Email:       h.Email,
			Subject:     "Financial year " + result.FinancialYear + " started",
			Message:     msg,
			Reason:      ReasonYearStarted,
		})
	}
	if err := e.notifier.Notify(ctx, batch); err != nil {
		e.logger.Warn("award summary notification failed", zap.Error(err))
	}
}
