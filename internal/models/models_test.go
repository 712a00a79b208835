package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/budget-service/internal/calendar"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDebtCharge(t *testing.T) {
	card := &Debt{Type: DebtTypeCreditCard, Paid: true}
	card.Charge(d("30"))

	assert.True(t, card.CurrentBalance.Equal(d("30")))
	assert.True(t, card.InitialBalance.Equal(d("30")))
	assert.True(t, card.PaidAmount.IsZero())
	assert.False(t, card.Paid)
}

func TestDebtChargeKeepsPaidAmountWithinPrincipal(t *testing.T) {
	card := &Debt{InitialBalance: d("500"), CurrentBalance: d("100"), PaidAmount: d("400")}
	card.Charge(d("50"))

	assert.True(t, card.CurrentBalance.Equal(d("150")))
	assert.True(t, card.InitialBalance.Equal(d("500")))
	assert.True(t, card.PaidAmount.Equal(d("400")))
}

func TestDebtApplyPaymentCapsAtBalance(t *testing.T) {
	debt := &Debt{CurrentBalance: d("80"), PaidAmount: d("20")}
	applied := debt.ApplyPayment(d("100"))

	assert.True(t, applied.Equal(d("80")))
	assert.True(t, debt.CurrentBalance.IsZero())
	assert.True(t, debt.PaidAmount.Equal(d("100")))
	assert.True(t, debt.Paid)
}

func TestDebtAccrue(t *testing.T) {
	debt := &Debt{InitialBalance: d("1000"), CurrentBalance: d("600")}
	debt.Accrue(d("100"))
	assert.True(t, debt.CurrentBalance.Equal(d("700")))
	assert.True(t, debt.InitialBalance.Equal(d("1100")))

	debt.Accrue(d("-5"))
	assert.True(t, debt.CurrentBalance.Equal(d("700")))
}

func TestScheduleRoundTrip(t *testing.T) {
	due := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	date, day, last := ScheduleFields(CalendarDue{Date: due})
	assert.Nil(t, day)
	assert.Equal(t, "", last)
	assert.Equal(t, CalendarDue{Date: due}, ScheduleFromFields(date, day, last))

	date, day, last = ScheduleFields(MonthlyDue{Day: 12, LastAccrualMonth: calendar.MonthKey{Year: 2025, Month: time.February}})
	assert.Nil(t, date)
	assert.Equal(t, "2025-02", last)
	assert.Equal(t, MonthlyDue{Day: 12, LastAccrualMonth: calendar.MonthKey{Year: 2025, Month: time.February}}, ScheduleFromFields(date, day, last))

	assert.Nil(t, ScheduleFromFields(nil, nil, ""))
}

func TestScheduleDueDateWinsOverDueDay(t *testing.T) {
	due := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	day := 3
	assert.Equal(t, CalendarDue{Date: due}, ScheduleFromFields(&due, &day, "2025-01"))
}

func TestExpenseIsOverdue(t *testing.T) {
	e := &Expense{Year: 2025, Month: time.March}
	now := time.Date(2025, time.March, 27, 9, 0, 0, 0, time.UTC)

	assert.False(t, e.IsOverdue(27, 0, now))
	assert.True(t, e.IsOverdue(27, 0, now.AddDate(0, 0, 1)))
	assert.False(t, e.IsOverdue(27, 5, now.AddDate(0, 0, 5)))
	assert.True(t, e.IsOverdue(27, 5, now.AddDate(0, 0, 6)))
}

func TestExpenseDebtable(t *testing.T) {
	assert.True(t, (&Expense{CategoryName: "Bills"}).Debtable())
	assert.False(t, (&Expense{CategoryName: " Savings "}).Debtable())
	assert.False(t, (&Expense{IsAllocation: true}).Debtable())
}

func TestParsePaymentSource(t *testing.T) {
	src, ok := ParsePaymentSource("extra_funds")
	assert.True(t, ok)
	assert.Equal(t, SourceExtra, src)

	src, ok = ParsePaymentSource("")
	assert.True(t, ok)
	assert.Equal(t, SourceIncome, src)

	_, ok = ParsePaymentSource("lottery")
	assert.False(t, ok)
}

func TestAdjustedSavingsFloorsAtZero(t *testing.T) {
	s := &PlanSettings{SavingsBalance: d("20")}
	assert.True(t, s.AdjustedSavings(d("-50")).IsZero())
	assert.True(t, s.AdjustedSavings(d("-5")).Equal(d("15")))
}

func TestDebtJSONCarriesSchedule(t *testing.T) {
	due := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		schedule DueSchedule
		fields   map[string]interface{}
	}{
		{"calendar", CalendarDue{Date: due}, map[string]interface{}{"due_date": "2025-03-10"}},
		{"monthly", MonthlyDue{Day: 5, LastAccrualMonth: calendar.MonthKey{Year: 2025, Month: time.February}}, map[string]interface{}{"due_day": 5.0, "last_accrual_month": "2025-02"}},
		{"unscheduled", nil, map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			debt := Debt{Name: "Loan", Type: DebtTypeLoan, CurrentBalance: d("100"), Schedule: tt.schedule}

			b, err := json.Marshal(debt)
			require.NoError(t, err)

			var raw map[string]interface{}
			require.NoError(t, json.Unmarshal(b, &raw))
			assert.Equal(t, "Loan", raw["name"])
			for _, key := range []string{"due_date", "due_day", "last_accrual_month"} {
				want, ok := tt.fields[key]
				if !ok {
					assert.NotContains(t, raw, key)
					continue
				}
				assert.Equal(t, want, raw[key])
			}

			var back Debt
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tt.schedule, back.Schedule)
			assert.True(t, back.CurrentBalance.Equal(d("100")))
		})
	}
}
