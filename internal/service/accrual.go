package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/notify"
	"github.com/Dan9191/budget-service/internal/projection"
	"github.com/Dan9191/budget-service/internal/store"
)

// AccrualProcessor folds missed payment cycles into debt principal. Each
// debt is evaluated in its own transaction with the row locked, and a cycle
// can only be accrued once: the calendar due date rolls forward, the legacy
// schedule records the accrued month.
type AccrualProcessor struct {
	*env
}

type cycleOutcome int

const (
	cycleSkipped cycleOutcome = iota
	cycleAdvanced
	cycleAccrued
	cycleDeferred
)

// AccrualEvent is one missed cycle added to a debt's balance
type AccrualEvent struct {
	DebtID     uuid.UUID       `json:"debt_id"`
	DebtName   string          `json:"debt_name"`
	Accrued    decimal.Decimal `json:"accrued"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Cycle      string          `json:"cycle"`
}

// AccrualReport summarizes one run over a plan
type AccrualReport struct {
	PlanID    uuid.UUID      `json:"plan_id"`
	RanAt     time.Time      `json:"ran_at"`
	Evaluated int            `json:"evaluated"`
	Advanced  int            `json:"advanced"`
	Accrued   int            `json:"accrued"`
	Deferred  int            `json:"deferred"`
	Skipped   int            `json:"skipped"`
	Events    []AccrualEvent `json:"events"`
	failures
}

// Run evaluates every scheduled debt of the plan. A failing debt is logged
// and reported; the others are still processed.
func (p *AccrualProcessor) Run(ctx context.Context, planID uuid.UUID) (*AccrualReport, error) {
	now := p.today()
	report := &AccrualReport{PlanID: planID, RanAt: now, Events: []AccrualEvent{}}

	debts, err := p.store.ListDebts(ctx, planID, store.DebtFilter{ExcludeDerived: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}

	for _, debt := range debts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if debt.Schedule == nil {
			report.Skipped++
			continue
		}

		outcome, event, err := p.processDebt(ctx, planID, debt.ID, now)
		if err != nil {
			p.log.WithFields(logrus.Fields{"plan_id": planID, "debt_id": debt.ID}).Errorf("Accrual failed: %v", err)
			report.add(debt.ID, err)
			continue
		}

		switch outcome {
		case cycleSkipped:
			report.Skipped++
			continue
		case cycleAdvanced:
			report.Advanced++
		case cycleAccrued:
			report.Accrued++
			report.Events = append(report.Events, *event)
		case cycleDeferred:
			report.Deferred++
		}
		report.Evaluated++
	}

	p.log.WithFields(logrus.Fields{
		"plan_id":  planID,
		"advanced": report.Advanced,
		"accrued":  report.Accrued,
		"deferred": report.Deferred,
		"failed":   len(report.Failures),
	}).Info("Accrual run completed")

	p.notifyAccruals(ctx, planID, report.Events)
	return report, nil
}

// RunAll runs the processor for every plan
func (p *AccrualProcessor) RunAll(ctx context.Context) ([]*AccrualReport, error) {
	planIDs, err := p.store.ListPlanIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	var (
		reports []*AccrualReport
		errs    []error
	)
	for _, planID := range planIDs {
		report, err := p.Run(ctx, planID)
		if err != nil {
			errs = append(errs, fmt.Errorf("plan %s: %w", planID, err))
			continue
		}
		if err := report.Err(); err != nil {
			errs = append(errs, fmt.Errorf("plan %s: %w", planID, err))
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}

func (p *AccrualProcessor) processDebt(ctx context.Context, planID, debtID uuid.UUID, now time.Time) (cycleOutcome, *AccrualEvent, error) {
	var (
		res   cycleResult
		event *AccrualEvent
	)
	err := p.store.WithTx(ctx, func(q store.Queries) error {
		debt, err := q.LockDebt(ctx, planID, debtID)
		if err != nil {
			return err
		}
		if debt.IsDerived() || !debt.CurrentBalance.IsPositive() {
			res = cycleResult{outcome: cycleSkipped}
			return nil
		}

		switch s := debt.Schedule.(type) {
		case models.CalendarDue:
			res, err = p.calendarCycle(ctx, q, debt, s, now)
		case models.MonthlyDue:
			res, err = p.monthlyCycle(ctx, q, debt, s, now)
		default:
			res = cycleResult{outcome: cycleSkipped}
		}
		if err != nil || res.outcome == cycleSkipped || res.outcome == cycleDeferred {
			return err
		}

		if err := q.UpdateDebt(ctx, debt); err != nil {
			return err
		}
		if res.outcome == cycleAccrued {
			event = &AccrualEvent{
				DebtID:     debt.ID,
				DebtName:   debt.Name,
				Accrued:    res.accrued,
				NewBalance: debt.CurrentBalance,
				Cycle:      res.label,
			}
		}
		return nil
	})
	if err != nil {
		return cycleSkipped, nil, err
	}
	return res.outcome, event, nil
}

type cycleResult struct {
	outcome cycleOutcome
	accrued decimal.Decimal
	label   string
}

// calendarCycle settles the cycle ending at the due date once it is covered
// or its grace window has passed. Payments count when prevDue < paidAt <=
// min(now, dueDate + grace).
func (p *AccrualProcessor) calendarCycle(ctx context.Context, q store.Queries, debt *models.Debt, s models.CalendarDue, now time.Time) (cycleResult, error) {
	dueAmount := projection.DebtDueAmount(debt)
	if !dueAmount.IsPositive() {
		return cycleResult{outcome: cycleSkipped}, nil
	}

	due := calendar.LocalDate(s.Date, now.Location())
	prevDue := calendar.AddMonths(due, -1)
	graceEnd := calendar.AddDays(due, calendar.GraceDays)
	windowEnd := now
	if graceEnd.Before(now) {
		windowEnd = graceEnd
	}

	paid, err := q.SumDebtPaymentsBetween(ctx, debt.ID, prevDue, windowEnd)
	if err != nil {
		return cycleResult{}, err
	}
	remaining := decimal.Max(decimal.Zero, dueAmount.Sub(paid))
	next := models.CalendarDue{Date: storedDate(calendar.AddMonths(due, 1))}
	label := "due " + calendar.FormatDMY(due)

	switch {
	case remaining.IsZero():
		debt.Schedule = next
		return cycleResult{outcome: cycleAdvanced, label: label}, nil
	case now.After(graceEnd):
		debt.Accrue(remaining)
		debt.Schedule = next
		return cycleResult{outcome: cycleAccrued, accrued: remaining, label: label}, nil
	default:
		return cycleResult{outcome: cycleDeferred, label: label}, nil
	}
}

// monthlyCycle accrues the previous calendar month once, with no grace
// window, guarded by the last accrued month.
func (p *AccrualProcessor) monthlyCycle(ctx context.Context, q store.Queries, debt *models.Debt, s models.MonthlyDue, now time.Time) (cycleResult, error) {
	prev := calendar.MonthOf(now).Prev()
	if s.LastAccrualMonth == prev {
		return cycleResult{outcome: cycleSkipped}, nil
	}

	dueAmount := projection.DebtDueAmount(debt)
	paid, err := q.SumDebtPaymentsInMonth(ctx, debt.ID, prev)
	if err != nil {
		return cycleResult{}, err
	}
	remaining := decimal.Max(decimal.Zero, dueAmount.Sub(paid))

	debt.Schedule = models.MonthlyDue{Day: s.Day, LastAccrualMonth: prev}
	if remaining.IsPositive() {
		debt.Accrue(remaining)
		return cycleResult{outcome: cycleAccrued, accrued: remaining, label: prev.String()}, nil
	}
	return cycleResult{outcome: cycleAdvanced, label: prev.String()}, nil
}

func (p *AccrualProcessor) notifyAccruals(ctx context.Context, planID uuid.UUID, events []AccrualEvent) {
	if len(events) == 0 {
		return
	}
	log := p.log.WithField("plan_id", planID)

	plan, err := p.store.GetPlanSettings(ctx, planID)
	if err != nil {
		log.Warnf("Skipping accrual notices: %v", err)
		return
	}
	user, err := p.store.GetUser(ctx, plan.UserID)
	if err != nil {
		log.Warnf("Skipping accrual notices: %v", err)
		return
	}

	for _, ev := range events {
		err := p.notifier.NotifyAccrual(ctx, user, notify.AccrualNotice{
			PlanID:     planID,
			DebtID:     ev.DebtID,
			DebtName:   ev.DebtName,
			Accrued:    ev.Accrued,
			NewBalance: ev.NewBalance,
			Cycle:      ev.Cycle,
		})
		if err != nil {
			log.WithField("debt_id", ev.DebtID).Warnf("Accrual notice not delivered: %v", err)
		}
	}
}

// storedDate drops the zone of a calendar date before it is persisted
func storedDate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
