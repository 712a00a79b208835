package projection

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
)

// AccumulatedDue is what is owed on a debt right now, for display
type AccumulatedDue struct {
	DueNow    decimal.Decimal `json:"due_now"`
	MonthsDue int             `json:"months_due"`
	Status    string          `json:"status,omitempty"`
}

// Accumulated projects the amount due now. It is independent of the accrual
// processor: a calendar debt past its grace window reads "Missed payment" even
// if the batch job has not run yet.
func Accumulated(debt *models.Debt, payments []models.DebtPayment, now time.Time) AccumulatedDue {
	perCycle := DebtDueAmount(debt)
	if debt.IsDerived() {
		return AccumulatedDue{DueNow: perCycle, MonthsDue: 1}
	}

	switch s := debt.Schedule.(type) {
	case models.CalendarDue:
		return calendarDue(debt, perCycle, s, now)
	case models.MonthlyDue:
		return monthlyDue(debt, perCycle, s, payments, now)
	}
	return AccumulatedDue{DueNow: perCycle, MonthsDue: 1}
}

func calendarDue(debt *models.Debt, perCycle decimal.Decimal, s models.CalendarDue, now time.Time) AccumulatedDue {
	due := calendar.LocalDate(s.Date, now.Location())
	overdueDays := int(math.Floor(now.Sub(due).Hours() / 24))
	dueNow := capAtBalance(perCycle, debt.CurrentBalance)
	label := calendar.FormatDMY(due)

	out := AccumulatedDue{DueNow: dueNow, MonthsDue: 1}
	switch {
	case overdueDays > calendar.GraceDays:
		out.Status = fmt.Sprintf("Missed payment (due %s)", label)
	case overdueDays > 0:
		out.Status = fmt.Sprintf("Overdue (due %s)", label)
	default:
		out.Status = fmt.Sprintf("Due %s", label)
	}
	return out
}

func monthlyDue(debt *models.Debt, perCycle decimal.Decimal, s models.MonthlyDue, payments []models.DebtPayment, now time.Time) AccumulatedDue {
	effective := calendar.MonthOf(now)
	if now.Day() < s.Day {
		effective = effective.Prev()
	}

	var lastPaid calendar.MonthKey
	for _, p := range payments {
		key := calendar.MonthKey{Year: p.Year, Month: p.Month}
		if key.IsZero() {
			key = calendar.MonthOf(p.PaidAt)
		}
		if lastPaid.IsZero() || lastPaid.Before(key) {
			lastPaid = key
		}
	}

	var months int
	if !lastPaid.IsZero() {
		months = calendar.MonthsBetween(lastPaid, effective)
	} else {
		months = calendar.MonthsBetween(calendar.MonthOf(debt.CreatedAt), effective) + 1
	}
	if months < 1 {
		months = 1
	}

	dueNow := capAtBalance(perCycle.Mul(decimal.NewFromInt(int64(months))), debt.CurrentBalance)
	out := AccumulatedDue{DueNow: dueNow, MonthsDue: months}
	if months > 1 {
		out.Status = fmt.Sprintf("%d months due", months)
	}
	return out
}

func capAtBalance(amount, balance decimal.Decimal) decimal.Decimal {
	if balance.IsPositive() {
		return decimal.Min(amount, balance)
	}
	return amount
}
