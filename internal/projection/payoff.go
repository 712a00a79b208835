package projection

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
)

// MaxPayoffMonths bounds the payoff projection
const MaxPayoffMonths = 60

// Payoff describes when a debt will be cleared at its planned payment
type Payoff struct {
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	MonthsLeft     *int            `json:"months_left"`
	PaidOffBy      *time.Time      `json:"paid_off_by,omitempty"`
}

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// ProjectPayoff walks the balance forward month by month using the planned
// payment and the debt's simple monthly rate (interestRate / 100 / 12).
// MonthsLeft is nil when the balance is never cleared within MaxPayoffMonths.
func ProjectPayoff(debt *models.Debt, now time.Time) Payoff {
	payment := DebtDueAmount(debt)
	out := Payoff{MonthlyPayment: payment}

	balance := decimal.Max(decimal.Zero, debt.CurrentBalance)
	if !balance.IsPositive() {
		zero := 0
		out.MonthsLeft = &zero
		return out
	}
	if !payment.IsPositive() {
		return out
	}

	rate := decimal.Zero
	if debt.InterestRate.Valid && debt.InterestRate.Decimal.IsPositive() {
		rate = debt.InterestRate.Decimal.Div(hundred).Div(twelve)
	}

	months := 0
	for months < MaxPayoffMonths && balance.IsPositive() {
		if rate.IsPositive() {
			balance = balance.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
		}
		balance = decimal.Max(decimal.Zero, balance.Sub(payment))
		months++
	}
	if balance.IsPositive() {
		return out
	}

	out.MonthsLeft = &months
	by := calendar.AddMonths(calendar.DateOnly(now), months)
	out.PaidOffBy = &by
	return out
}
