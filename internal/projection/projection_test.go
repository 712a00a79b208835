package projection

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDueAmount(t *testing.T) {
	tests := []struct {
		name string
		in   DueInput
		want string
	}{
		{"flat amount wins", DueInput{FlatAmount: d("120"), InstallmentMonths: 10, InitialBalance: d("5000")}, "120"},
		{"installment on initial balance", DueInput{InstallmentMonths: 12, InitialBalance: d("1200"), CurrentBalance: d("600")}, "100"},
		{"installment falls back to current balance", DueInput{InstallmentMonths: 4, CurrentBalance: d("600")}, "150"},
		{"installment rounds to cents", DueInput{InstallmentMonths: 3, InitialBalance: d("100")}, "33.33"},
		{"minimum raises planned", DueInput{FlatAmount: d("20"), MonthlyMinimum: d("35")}, "35"},
		{"minimum alone", DueInput{MonthlyMinimum: d("25")}, "25"},
		{"nothing set", DueInput{}, "0"},
		{"negative flat amount ignored", DueInput{FlatAmount: d("-10")}, "0"},
		{"zero principal", DueInput{InstallmentMonths: 6}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DueAmount(tt.in)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestDebtDueAmountUsesMinimum(t *testing.T) {
	debt := &models.Debt{Amount: d("10"), MonthlyMinimum: decimal.NewNullDecimal(d("40"))}
	assert.True(t, DebtDueAmount(debt).Equal(d("40")))
}

func TestPercentPaid(t *testing.T) {
	assert.InDelta(t, 25.0, PercentPaid(d("400"), d("300")), 0.0001)
	assert.Equal(t, 0.0, PercentPaid(decimal.Zero, d("300")))
}

func calendarDebt(due time.Time) *models.Debt {
	return &models.Debt{
		ID:             uuid.New(),
		Amount:         d("100"),
		CurrentBalance: d("1000"),
		InitialBalance: d("1000"),
		Schedule:       models.CalendarDue{Date: due},
	}
}

func TestAccumulatedCalendarLabels(t *testing.T) {
	due := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	debt := calendarDebt(due)

	got := Accumulated(debt, nil, due.AddDate(0, 0, -2))
	assert.Equal(t, "Due 10/03/2025", got.Status)
	assert.True(t, got.DueNow.Equal(d("100")))
	assert.Equal(t, 1, got.MonthsDue)

	got = Accumulated(debt, nil, due.AddDate(0, 0, 3))
	assert.Equal(t, "Overdue (due 10/03/2025)", got.Status)

	got = Accumulated(debt, nil, due.AddDate(0, 0, 5))
	assert.Equal(t, "Overdue (due 10/03/2025)", got.Status)

	got = Accumulated(debt, nil, due.AddDate(0, 0, 6))
	assert.Equal(t, "Missed payment (due 10/03/2025)", got.Status)
}

func TestAccumulatedCalendarReadsDueDateInLocalZone(t *testing.T) {
	debt := calendarDebt(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))

	west := time.FixedZone("UTC-7", -7*60*60)
	got := Accumulated(debt, nil, time.Date(2025, time.March, 10, 18, 0, 0, 0, west))
	assert.Equal(t, "Due 10/03/2025", got.Status)

	east := time.FixedZone("UTC+9", 9*60*60)
	got = Accumulated(debt, nil, time.Date(2025, time.March, 16, 3, 0, 0, 0, east))
	assert.Equal(t, "Missed payment (due 10/03/2025)", got.Status)
}

func TestAccumulatedCalendarCapsAtBalance(t *testing.T) {
	debt := calendarDebt(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	debt.CurrentBalance = d("40")

	got := Accumulated(debt, nil, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, got.DueNow.Equal(d("40")))
}

func TestAccumulatedMonthlyCountsMissedCycles(t *testing.T) {
	debt := &models.Debt{
		Amount:         d("50"),
		CurrentBalance: d("1000"),
		Schedule:       models.MonthlyDue{Day: 15},
		CreatedAt:      time.Date(2024, time.October, 3, 0, 0, 0, 0, time.UTC),
	}
	payments := []models.DebtPayment{
		{Amount: d("50"), Year: 2024, Month: time.November},
		{Amount: d("50"), Year: 2024, Month: time.December},
	}

	// March 20 is past the 15th, so March is the effective cycle.
	got := Accumulated(debt, payments, time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 3, got.MonthsDue)
	assert.True(t, got.DueNow.Equal(d("150")))
	assert.Equal(t, "3 months due", got.Status)

	// March 10 is before the due day, so February is the effective cycle.
	got = Accumulated(debt, payments, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, got.MonthsDue)
}

func TestAccumulatedMonthlyWithoutPaymentsUsesCreation(t *testing.T) {
	debt := &models.Debt{
		Amount:         d("50"),
		CurrentBalance: d("120"),
		Schedule:       models.MonthlyDue{Day: 1},
		CreatedAt:      time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC),
	}

	got := Accumulated(debt, nil, time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 3, got.MonthsDue)
	assert.True(t, got.DueNow.Equal(d("120")), "capped at current balance")
}

func TestAccumulatedMonthlyCurrentCycleIsOneMonth(t *testing.T) {
	debt := &models.Debt{
		Amount:   d("50"),
		Schedule: models.MonthlyDue{Day: 1},
	}
	payments := []models.DebtPayment{{Amount: d("50"), Year: 2025, Month: time.March}}

	got := Accumulated(debt, payments, time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, got.MonthsDue)
	assert.Empty(t, got.Status)
}

func TestAccumulatedDerivedDebtIsFlat(t *testing.T) {
	debt := calendarDebt(time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	debt.Source = &models.DebtSource{ExpenseID: uuid.New()}

	got := Accumulated(debt, nil, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Empty(t, got.Status)
	assert.True(t, got.DueNow.Equal(d("100")))
}

func TestProjectPayoffWithoutInterest(t *testing.T) {
	now := time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC)
	debt := &models.Debt{Amount: d("100"), CurrentBalance: d("250")}

	got := ProjectPayoff(debt, now)
	require.NotNil(t, got.MonthsLeft)
	assert.Equal(t, 3, *got.MonthsLeft)
	require.NotNil(t, got.PaidOffBy)
	assert.Equal(t, calendar.AddMonths(calendar.DateOnly(now), 3), *got.PaidOffBy)
}

func TestProjectPayoffWithInterest(t *testing.T) {
	debt := &models.Debt{
		Amount:         d("100"),
		CurrentBalance: d("1000"),
		InterestRate:   decimal.NewNullDecimal(d("12")),
	}

	got := ProjectPayoff(debt, time.Now())
	require.NotNil(t, got.MonthsLeft)
	assert.Equal(t, 11, *got.MonthsLeft)
}

func TestProjectPayoffNeverClears(t *testing.T) {
	debt := &models.Debt{
		Amount:         d("5"),
		CurrentBalance: d("1000"),
		InterestRate:   decimal.NewNullDecimal(d("24")),
	}

	got := ProjectPayoff(debt, time.Now())
	assert.Nil(t, got.MonthsLeft)
	assert.Nil(t, got.PaidOffBy)
}

func TestProjectPayoffSettledDebt(t *testing.T) {
	got := ProjectPayoff(&models.Debt{Amount: d("5")}, time.Now())
	require.NotNil(t, got.MonthsLeft)
	assert.Equal(t, 0, *got.MonthsLeft)
}
