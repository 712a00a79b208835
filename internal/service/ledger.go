package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
)

// Ledger applies payments to expenses and debts, keeping the payment rows,
// the paid amounts and the funding balances in step.
type Ledger struct {
	*env
}

// ReconcileRequest sets how much of an expense has been paid so far
type ReconcileRequest struct {
	PlanID            uuid.UUID
	ExpenseID         uuid.UUID
	DesiredPaidAmount decimal.Decimal
	Source            models.PaymentSource
	CardDebtID        *uuid.UUID
	// AdjustBalances charges the funding source for any increase.
	AdjustBalances bool
	// ResetOnDecrease rebuilds the payment rows when the desired amount is
	// below what is recorded. Without it the recorded rows are kept.
	ResetOnDecrease bool
	// Clamp pulls an out of range amount into [0, amount] instead of
	// rejecting it.
	Clamp bool
}

// ReconcileResult is the state of the expense after reconciliation
type ReconcileResult struct {
	FinalPaidAmount decimal.Decimal `json:"final_paid_amount"`
	FinalPaid       bool            `json:"final_paid"`
	ChangedPayments bool            `json:"changed_payments"`
	CardDebtID      *uuid.UUID      `json:"card_debt_id,omitempty"`
	CardResolved    bool            `json:"card_resolved"`
	DerivedDebt     *models.Debt    `json:"derived_debt,omitempty"`
}

// ReconcileExpense makes the expense's payment rows sum to the desired paid
// amount and applies the funding side effect of any increase, all in one
// transaction. The recorded total is always read back from the rows.
func (l *Ledger) ReconcileExpense(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	source, ok := models.ParsePaymentSource(string(req.Source))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, req.Source)
	}
	desired := req.DesiredPaidAmount
	if desired.IsNegative() {
		if !req.Clamp {
			return nil, fmt.Errorf("%w: paid amount must not be negative", ErrInvalidAmount)
		}
		desired = decimal.Zero
	}

	res := &ReconcileResult{}
	err := l.store.WithTx(ctx, func(q store.Queries) error {
		res = &ReconcileResult{}
		e, err := q.LockExpense(ctx, req.PlanID, req.ExpenseID)
		if err != nil {
			return err
		}
		// the derived debt is locked ahead of any card, same as RecordDebtPayment
		if err := lockDerivedDebt(ctx, q, e); err != nil {
			return err
		}
		if desired.GreaterThan(e.Amount) && req.Clamp {
			desired = e.Amount
		}
		if desired.GreaterThan(e.Amount) {
			return fmt.Errorf("%w: paid amount %s exceeds expense amount %s", ErrInvalidAmount, desired, e.Amount)
		}

		recorded, err := q.SumExpensePayments(ctx, e.ID)
		if err != nil {
			return err
		}

		final := desired
		now := l.now()
		switch {
		case recorded.GreaterThan(desired) && req.ResetOnDecrease:
			if _, err := q.DeleteExpensePayments(ctx, e.ID); err != nil {
				return err
			}
			if desired.IsPositive() {
				if err := q.CreateExpensePayment(ctx, &models.ExpensePayment{ExpenseID: e.ID, Amount: desired, PaidAt: now, Source: source}); err != nil {
					return err
				}
			}
			res.ChangedPayments = true
		case recorded.GreaterThan(desired):
			final = recorded
		case recorded.LessThan(desired):
			delta := desired.Sub(recorded)
			if err := q.CreateExpensePayment(ctx, &models.ExpensePayment{ExpenseID: e.ID, Amount: delta, PaidAt: now, Source: source}); err != nil {
				return err
			}
			res.ChangedPayments = true
			if req.AdjustBalances {
				if err := l.applyFunding(ctx, q, req, source, delta, res); err != nil {
					return err
				}
			}
		}

		res.FinalPaidAmount = final
		res.FinalPaid = e.Amount.IsPositive() && final.GreaterThanOrEqual(e.Amount)
		if err := q.UpdateExpensePaid(ctx, e.ID, res.FinalPaidAmount, res.FinalPaid); err != nil {
			return err
		}

		e.PaidAmount, e.Paid = res.FinalPaidAmount, res.FinalPaid
		res.DerivedDebt, err = refreshDerivedDebt(ctx, q, e)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"plan_id":    req.PlanID,
		"expense_id": req.ExpenseID,
		"paid":       res.FinalPaidAmount.String(),
		"source":     source,
	}).Info("Expense payment reconciled")
	return res, nil
}

func (l *Ledger) applyFunding(ctx context.Context, q store.Queries, req ReconcileRequest, source models.PaymentSource, delta decimal.Decimal, res *ReconcileResult) error {
	switch source {
	case models.SourceSavings:
		_, err := q.AdjustSavingsBalance(ctx, req.PlanID, delta.Neg())
		return err
	case models.SourceCreditCard:
		cardID, err := ResolveCard(ctx, q, req.PlanID, req.CardDebtID)
		if err != nil {
			return err
		}
		if cardID == nil {
			l.log.WithFields(logrus.Fields{"plan_id": req.PlanID, "expense_id": req.ExpenseID}).
				Warn("No card resolved for credit card payment, balance left unchanged")
			return nil
		}
		card, err := q.LockDebt(ctx, req.PlanID, *cardID)
		if err != nil {
			return err
		}
		card.Charge(delta)
		if err := q.UpdateDebt(ctx, card); err != nil {
			return err
		}
		res.CardDebtID = cardID
		res.CardResolved = true
	}
	return nil
}

func lockDerivedDebt(ctx context.Context, q store.Queries, e *models.Expense) error {
	derived, err := q.FindDerivedDebt(ctx, e.PlanID, e.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = q.LockDebt(ctx, e.PlanID, derived.ID)
	return err
}

// refreshDerivedDebt keeps an existing derived debt in line with its source
// expense. Expenses that were never carried over are left alone.
func refreshDerivedDebt(ctx context.Context, q store.Queries, e *models.Expense) (*models.Debt, error) {
	_, err := q.FindDerivedDebt(ctx, e.PlanID, e.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	debt, _, err := syncDerivedDebt(ctx, q, e)
	return debt, err
}

// ResolveCard picks the card to charge: the requested debt when it is a card
// on the plan, else the plan's only card. With zero or several cards and no
// valid request it resolves nothing.
func ResolveCard(ctx context.Context, q store.Queries, planID uuid.UUID, requested *uuid.UUID) (*uuid.UUID, error) {
	if requested != nil {
		d, err := q.GetDebt(ctx, planID, *requested)
		switch {
		case err == nil && !d.IsDerived() && d.Type.IsCard():
			id := d.ID
			return &id, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	cards, err := q.ListDebts(ctx, planID, store.DebtFilter{ExcludeDerived: true, OnlyCards: true})
	if err != nil {
		return nil, err
	}
	if len(cards) != 1 {
		return nil, nil
	}
	id := cards[0].ID
	return &id, nil
}
