// Package projection contains the read-only calculators used to display what
// is owed on a debt: the per-cycle due amount, the accumulated amount due right
// now and a payoff projection. Nothing here touches storage.
package projection

import (
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/models"
)

// DueInput is the subset of a debt the due-amount rule looks at
type DueInput struct {
	FlatAmount        decimal.Decimal
	MonthlyMinimum    decimal.Decimal
	InstallmentMonths int
	InitialBalance    decimal.Decimal
	CurrentBalance    decimal.Decimal
}

// DueAmount returns the amount owed for one cycle: the flat amount when set,
// otherwise the installment share of the principal, raised to the monthly
// minimum. Invalid input yields zero.
func DueAmount(in DueInput) decimal.Decimal {
	planned := decimal.Zero
	if in.FlatAmount.IsPositive() {
		planned = in.FlatAmount
	} else if in.InstallmentMonths > 0 {
		principal := in.CurrentBalance
		if in.InitialBalance.IsPositive() {
			principal = in.InitialBalance
		}
		if principal.IsPositive() {
			planned = principal.DivRound(decimal.NewFromInt(int64(in.InstallmentMonths)), 2)
		}
	}
	if in.MonthlyMinimum.IsPositive() {
		planned = decimal.Max(planned, in.MonthlyMinimum)
	}
	return decimal.Max(decimal.Zero, planned)
}

// DueInputFor extracts the due-amount input from a debt
func DueInputFor(d *models.Debt) DueInput {
	in := DueInput{
		FlatAmount:        d.Amount,
		InstallmentMonths: d.InstallmentMonths,
		InitialBalance:    d.InitialBalance,
		CurrentBalance:    d.CurrentBalance,
	}
	if d.MonthlyMinimum.Valid {
		in.MonthlyMinimum = d.MonthlyMinimum.Decimal
	}
	return in
}

// DebtDueAmount is DueAmount applied to a debt
func DebtDueAmount(d *models.Debt) decimal.Decimal {
	return DueAmount(DueInputFor(d))
}

// PercentPaid returns how much of the principal has been paid off, 0..100
func PercentPaid(initial, current decimal.Decimal) float64 {
	if !initial.IsPositive() {
		return 0
	}
	pct, _ := initial.Sub(current).Div(initial).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
