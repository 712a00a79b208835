package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
)

// DebtPaymentRequest records money paid against a debt
type DebtPaymentRequest struct {
	PlanID uuid.UUID
	DebtID uuid.UUID
	Amount decimal.Decimal
	// Month books the payment to a month other than the current one.
	Month      calendar.MonthKey
	Source     models.PaymentSource
	CardDebtID *uuid.UUID
	Notes      string
}

// DebtPaymentResult is the payment row and the rows it changed
type DebtPaymentResult struct {
	Payment models.DebtPayment `json:"payment"`
	Debt    models.Debt        `json:"debt"`
	Card    *models.Debt       `json:"card,omitempty"`
	Expense *models.Expense    `json:"expense,omitempty"`
}

// RecordDebtPayment applies a payment to a debt, never taking the balance
// below zero. A card-funded payment charges the card by the applied amount.
// Paying a derived debt also pays its source expense.
func (l *Ledger) RecordDebtPayment(ctx context.Context, req DebtPaymentRequest) (*DebtPaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment must be positive", ErrInvalidAmount)
	}
	source, ok := models.ParsePaymentSource(string(req.Source))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, req.Source)
	}
	if source == models.SourceCreditCard {
		if req.CardDebtID == nil {
			return nil, ErrCardRequired
		}
		if *req.CardDebtID == req.DebtID {
			return nil, fmt.Errorf("%w: cannot pay a debt using the same card", ErrInvalidCard)
		}
	}

	var res *DebtPaymentResult
	err := l.store.WithTx(ctx, func(q store.Queries) error {
		target, err := q.GetDebt(ctx, req.PlanID, req.DebtID)
		if err != nil {
			return err
		}
		// expense rows are locked before debt rows on every path
		var sourceExpense *models.Expense
		if target.IsDerived() {
			if sourceExpense, err = lockSourceExpense(ctx, q, target); err != nil {
				return err
			}
		}

		debt, card, err := lockDebtAndCard(ctx, q, req.PlanID, req.DebtID, req.CardDebtID, source)
		if err != nil {
			return err
		}
		if !debt.CurrentBalance.IsPositive() {
			return ErrDebtSettled
		}

		now := l.now()
		month := req.Month
		if month.IsZero() {
			month = calendar.MonthOf(now.In(l.loc))
		}
		applied := debt.ApplyPayment(req.Amount)

		payment := models.DebtPayment{
			DebtID: debt.ID,
			Amount: applied,
			PaidAt: now,
			Year:   month.Year,
			Month:  month.Month,
			Source: source,
			Notes:  req.Notes,
		}
		if card != nil {
			payment.CardDebtID = &card.ID
		}
		if err := q.CreateDebtPayment(ctx, &payment); err != nil {
			return err
		}
		if err := q.UpdateDebt(ctx, debt); err != nil {
			return err
		}
		res = &DebtPaymentResult{Payment: payment, Debt: *debt}

		if card != nil {
			card.Charge(applied)
			if err := q.UpdateDebt(ctx, card); err != nil {
				return err
			}
			res.Card = card
		}

		if sourceExpense != nil {
			if err := payExpenseFromDebt(ctx, q, sourceExpense, applied, source, now); err != nil {
				return err
			}
			res.Expense = sourceExpense
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"plan_id": req.PlanID,
		"debt_id": req.DebtID,
		"amount":  res.Payment.Amount.String(),
		"source":  source,
	}).Info("Debt payment recorded")
	return res, nil
}

// lockDebtAndCard locks both rows in id order so two payments touching the
// same pair cannot deadlock
func lockDebtAndCard(ctx context.Context, q store.Queries, planID, debtID uuid.UUID, cardID *uuid.UUID, source models.PaymentSource) (*models.Debt, *models.Debt, error) {
	if source != models.SourceCreditCard {
		debt, err := q.LockDebt(ctx, planID, debtID)
		return debt, nil, err
	}

	ids := []uuid.UUID{debtID, *cardID}
	if bytes.Compare(ids[1][:], ids[0][:]) < 0 {
		ids[0], ids[1] = ids[1], ids[0]
	}
	locked := make(map[uuid.UUID]*models.Debt, 2)
	for _, id := range ids {
		d, err := q.LockDebt(ctx, planID, id)
		if errors.Is(err, store.ErrNotFound) && id == *cardID {
			return nil, nil, fmt.Errorf("%w: selected card not found", ErrInvalidCard)
		}
		if err != nil {
			return nil, nil, err
		}
		locked[id] = d
	}

	card := locked[*cardID]
	if card.IsDerived() || !card.Type.IsCard() {
		return nil, nil, ErrInvalidCard
	}
	return locked[debtID], card, nil
}

// lockSourceExpense locks the expense a derived debt was carried over from.
// A deleted source yields nil.
func lockSourceExpense(ctx context.Context, q store.Queries, debt *models.Debt) (*models.Expense, error) {
	e, err := q.LockExpense(ctx, debt.PlanID, debt.Source.ExpenseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

// payExpenseFromDebt credits a derived debt's payment to its locked source
// expense, capped at the expense amount, and records the matching payment row
func payExpenseFromDebt(ctx context.Context, q store.Queries, e *models.Expense, applied decimal.Decimal, source models.PaymentSource, now time.Time) error {
	paid := decimal.Min(e.Amount, decimal.Max(decimal.Zero, e.PaidAmount.Add(applied)))
	recorded, err := q.SumExpensePayments(ctx, e.ID)
	if err != nil {
		return err
	}
	if recorded.LessThan(paid) {
		row := &models.ExpensePayment{ExpenseID: e.ID, Amount: paid.Sub(recorded), PaidAt: now, Source: expenseSourceFor(source)}
		if err := q.CreateExpensePayment(ctx, row); err != nil {
			return err
		}
	} else if recorded.GreaterThan(paid) {
		paid = recorded
	}

	e.PaidAmount = paid
	e.Paid = e.Amount.IsPositive() && paid.GreaterThanOrEqual(e.Amount)
	return q.UpdateExpensePaid(ctx, e.ID, e.PaidAmount, e.Paid)
}

func expenseSourceFor(s models.PaymentSource) models.PaymentSource {
	switch s {
	case models.SourceIncome, models.SourceCreditCard, models.SourceSavings, models.SourceEmergency:
		return s
	}
	return models.SourceExtra
}
