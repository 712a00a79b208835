package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/projection"
	"github.com/Dan9191/budget-service/internal/store"
)

// DebtViews builds read models for debt listings
type DebtViews struct {
	*env
}

// DebtDue is a debt together with what is owed on it now
type DebtDue struct {
	Debt             models.Debt               `json:"debt"`
	DueDate          *time.Time                `json:"due_date,omitempty"`
	DueDay           *int                      `json:"due_day,omitempty"`
	LastAccrualMonth string                    `json:"last_accrual_month,omitempty"`
	DueAmount        decimal.Decimal           `json:"due_amount"`
	Accumulated      projection.AccumulatedDue `json:"accumulated"`
	Payoff           projection.Payoff         `json:"payoff"`
	PercentPaid      float64                   `json:"percent_paid"`
}

// DebtsDue lists the plan's debts with their due amount, the accumulated
// amount due today and the payoff projection. Derived debts are included
// only when includeDerived is set.
func (v *DebtViews) DebtsDue(ctx context.Context, planID uuid.UUID, includeDerived bool) ([]DebtDue, error) {
	debts, err := v.store.ListDebts(ctx, planID, store.DebtFilter{ExcludeDerived: !includeDerived})
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}

	now := v.today()
	out := make([]DebtDue, 0, len(debts))
	for i := range debts {
		debt := &debts[i]
		payments, err := v.store.ListDebtPayments(ctx, debt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list payments for debt %s: %w", debt.ID, err)
		}

		dueDate, dueDay, last := models.ScheduleFields(debt.Schedule)
		out = append(out, DebtDue{
			Debt:             *debt,
			DueDate:          dueDate,
			DueDay:           dueDay,
			LastAccrualMonth: last,
			DueAmount:        projection.DebtDueAmount(debt),
			Accumulated:      projection.Accumulated(debt, payments, now),
			Payoff:           projection.ProjectPayoff(debt, now),
			PercentPaid:      projection.PercentPaid(debt.InitialBalance, debt.CurrentBalance),
		})
	}
	return out, nil
}
