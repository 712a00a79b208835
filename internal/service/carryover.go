package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
)

// Carryover turns unpaid or partially paid expenses into derived debts, one
// per source expense, and decides which of those debts are shown.
type Carryover struct {
	*env
}

// UnpaidRequest selects the expenses of one plan month to carry over
type UnpaidRequest struct {
	Period calendar.MonthKey `json:"period"`
	// OnlyPartialPayments converts partially paid expenses right away,
	// without waiting for their due date.
	OnlyPartialPayments bool `json:"only_partial_payments"`
	// ForceExpenseIDs are converted regardless of their due date.
	ForceExpenseIDs []uuid.UUID `json:"force_expense_ids,omitempty"`
}

// CarryoverReport summarizes one carryover pass
type CarryoverReport struct {
	PlanID    uuid.UUID     `json:"plan_id"`
	Scanned   int           `json:"scanned"`
	Converted int           `json:"converted"`
	Settled   int           `json:"settled"`
	Skipped   int           `json:"skipped"`
	Debts     []models.Debt `json:"debts"`
	failures
}

type carryMode int

const (
	carryPeriodic carryMode = iota
	carryImmediate
	carryBackfill
	carryOverdue
)

// ProcessUnpaid carries over the unpaid expenses of one month. In immediate
// mode only partially paid (or forced) expenses are taken and the due check
// is skipped; otherwise an expense must be past its due date.
func (c *Carryover) ProcessUnpaid(ctx context.Context, planID uuid.UUID, req UnpaidRequest) (*CarryoverReport, error) {
	if req.Period.IsZero() {
		return nil, ErrPeriodRequired
	}
	filter := store.ExpenseFilter{Period: req.Period, UnpaidOnly: true}
	mode := carryPeriodic
	if req.OnlyPartialPayments {
		mode = carryImmediate
		if len(req.ForceExpenseIDs) > 0 {
			filter.IDs = req.ForceExpenseIDs
		} else {
			filter.PartialOnly = true
		}
	}
	return c.run(ctx, planID, filter, mode, req.ForceExpenseIDs)
}

// Backfill carries over every unpaid expense of the months before the
// current one. A past month is overdue by definition.
func (c *Carryover) Backfill(ctx context.Context, planID uuid.UUID) (*CarryoverReport, error) {
	filter := store.ExpenseFilter{Before: calendar.MonthOf(c.today()), UnpaidOnly: true}
	return c.run(ctx, planID, filter, carryBackfill, nil)
}

// ProcessOverdue carries over every unpaid expense of the plan that is
// either past due or already partially paid.
func (c *Carryover) ProcessOverdue(ctx context.Context, planID uuid.UUID) (*CarryoverReport, error) {
	return c.run(ctx, planID, store.ExpenseFilter{UnpaidOnly: true}, carryOverdue, nil)
}

// RunAll runs the periodic pass for the current month and the backfill for
// every plan
func (c *Carryover) RunAll(ctx context.Context) ([]*CarryoverReport, error) {
	planIDs, err := c.store.ListPlanIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	period := calendar.MonthOf(c.today())
	var (
		reports []*CarryoverReport
		errs    []error
	)
	for _, planID := range planIDs {
		for _, pass := range []func() (*CarryoverReport, error){
			func() (*CarryoverReport, error) { return c.Backfill(ctx, planID) },
			func() (*CarryoverReport, error) {
				return c.ProcessUnpaid(ctx, planID, UnpaidRequest{Period: period})
			},
		} {
			report, err := pass()
			if err == nil {
				err = report.Err()
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("plan %s: %w", planID, err))
			}
			if report != nil {
				reports = append(reports, report)
			}
		}
	}
	return reports, errors.Join(errs...)
}

func (c *Carryover) run(ctx context.Context, planID uuid.UUID, filter store.ExpenseFilter, mode carryMode, forced []uuid.UUID) (*CarryoverReport, error) {
	report := &CarryoverReport{PlanID: planID, Debts: []models.Debt{}}
	log := c.log.WithField("plan_id", planID)

	plan, err := c.store.GetPlanSettings(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan settings: %w", err)
	}
	if !plan.ConvertsOverdue() {
		log.Debugf("Skipping carryover for %s plan", plan.Kind)
		return report, nil
	}

	expenses, err := c.store.ListExpenses(ctx, planID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	force := make(map[uuid.UUID]bool, len(forced))
	for _, id := range forced {
		force[id] = true
	}
	now := c.today()

	for i := range expenses {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		e := &expenses[i]
		report.Scanned++
		if !e.Debtable() || !c.qualifies(e, plan, mode, force[e.ID], now) {
			report.Skipped++
			continue
		}

		debt, settled, err := c.convert(ctx, planID, e.ID)
		if err != nil {
			log.WithField("expense_id", e.ID).Errorf("Carryover failed: %v", err)
			report.add(e.ID, err)
			continue
		}
		switch {
		case debt == nil:
			report.Skipped++
		case settled:
			report.Settled++
			report.Debts = append(report.Debts, *debt)
		default:
			report.Converted++
			report.Debts = append(report.Debts, *debt)
		}
	}

	log.WithFields(logrus.Fields{
		"converted": report.Converted,
		"settled":   report.Settled,
		"skipped":   report.Skipped,
		"failed":    len(report.Failures),
	}).Info("Carryover completed")
	return report, nil
}

func (c *Carryover) qualifies(e *models.Expense, plan *models.PlanSettings, mode carryMode, forced bool, now time.Time) bool {
	switch mode {
	case carryImmediate, carryBackfill:
		return true
	case carryOverdue:
		return e.PaidAmount.IsPositive() || e.IsOverdue(plan.PayDate, c.graceDays, now)
	default:
		return forced || e.IsOverdue(plan.PayDate, c.graceDays, now)
	}
}

// convert upserts the derived debt of one expense from its locked row. An
// expense with nothing left to pay settles its existing derived debt.
func (c *Carryover) convert(ctx context.Context, planID, expenseID uuid.UUID) (debt *models.Debt, settled bool, err error) {
	err = c.store.WithTx(ctx, func(q store.Queries) error {
		e, err := q.LockExpense(ctx, planID, expenseID)
		if err != nil {
			return err
		}
		debt, settled, err = syncDerivedDebt(ctx, q, e)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return debt, settled, nil
}

// syncDerivedDebt makes the derived debt of e match its remaining amount.
// It returns nil when there is nothing to carry and no debt to settle.
func syncDerivedDebt(ctx context.Context, q store.Queries, e *models.Expense) (*models.Debt, bool, error) {
	remaining := e.Remaining()
	if remaining.IsPositive() {
		debt, err := q.UpsertDerivedDebt(ctx, store.DerivedDebt{
			PlanID:    e.PlanID,
			Name:      DerivedDebtName(e),
			Remaining: remaining,
			Source: models.DebtSource{
				ExpenseID:    e.ID,
				MonthKey:     e.Period().String(),
				Year:         e.Year,
				CategoryID:   e.CategoryID,
				CategoryName: e.CategoryName,
				ExpenseName:  e.Name,
			},
		})
		return debt, false, err
	}

	debt, err := q.FindDerivedDebt(ctx, e.PlanID, e.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if debt.Paid && debt.CurrentBalance.IsZero() {
		return debt, true, nil
	}
	debt.Settle()
	if err := q.UpdateDebt(ctx, debt); err != nil {
		return nil, false, err
	}
	return debt, true, nil
}

// DerivedDebtName is "{category}: {expense} (MM YYYY)", without the category
// prefix when the expense has none
func DerivedDebtName(e *models.Expense) string {
	period := fmt.Sprintf("(%02d %d)", int(e.Month), e.Year)
	if e.CategoryName == "" {
		return fmt.Sprintf("%s %s", e.Name, period)
	}
	return fmt.Sprintf("%s: %s %s", e.CategoryName, e.Name, period)
}

// ExpenseDebts lists the derived debts with a balance that should be shown.
// A debt is shown once it has been partly paid or its source is past due;
// a debt whose source cannot be found is shown. Sources that are
// allocations or non-debt categories are never shown.
func (c *Carryover) ExpenseDebts(ctx context.Context, planID uuid.UUID) ([]models.Debt, error) {
	plan, err := c.store.GetPlanSettings(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan settings: %w", err)
	}
	debts, err := c.store.ListDebts(ctx, planID, store.DebtFilter{OnlyDerived: true, WithBalance: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list derived debts: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(debts))
	for _, d := range debts {
		ids = append(ids, d.Source.ExpenseID)
	}
	byID := make(map[uuid.UUID]*models.Expense, len(ids))
	if len(ids) > 0 {
		expenses, err := c.store.ListExpenses(ctx, planID, store.ExpenseFilter{IDs: ids})
		if err != nil {
			return nil, fmt.Errorf("failed to list source expenses: %w", err)
		}
		for i := range expenses {
			byID[expenses[i].ID] = &expenses[i]
		}
	}

	now := c.today()
	visible := make([]models.Debt, 0, len(debts))
	for _, d := range debts {
		if models.IsNonDebtCategory(d.Source.CategoryName) {
			continue
		}
		if c.debtVisible(&d, byID[d.Source.ExpenseID], plan, now) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

func (c *Carryover) debtVisible(d *models.Debt, src *models.Expense, plan *models.PlanSettings, now time.Time) bool {
	if src == nil {
		return true
	}
	if !src.Debtable() {
		return false
	}
	if src.Paid {
		return true
	}
	return d.PaidAmount.IsPositive() || src.PaidAmount.IsPositive() || src.IsOverdue(plan.PayDate, c.graceDays, now)
}
