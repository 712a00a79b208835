package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store/memory"
)

func calendarLoan(planID uuid.UUID, due time.Time) models.Debt {
	return models.Debt{
		PlanID:         planID,
		Name:           "Car loan",
		Type:           models.DebtTypeLoan,
		InitialBalance: d("1000"),
		CurrentBalance: d("1000"),
		Amount:         d("100"),
		Schedule:       models.CalendarDue{Date: due},
	}
}

func TestAccrualDefersInsideGraceWindow(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	debt := st.PutDebt(calendarLoan(planID, date(2025, time.March, 10)))

	clock := &testClock{now: at(2025, time.March, 13, 9)}
	svc := newTestService(st, clock)

	report, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 0, report.Accrued)

	got := getDebt(t, st, planID, debt.ID)
	assert.True(t, got.CurrentBalance.Equal(d("1000")))
	assert.Equal(t, models.CalendarDue{Date: date(2025, time.March, 10)}, got.Schedule)
}

func TestAccrualAccruesAfterGraceWindowOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	debt := st.PutDebt(calendarLoan(planID, date(2025, time.March, 10)))

	clock := &testClock{now: at(2025, time.March, 16, 9)}
	svc := newTestService(st, clock)

	report, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accrued)
	require.Len(t, report.Events, 1)
	assert.True(t, report.Events[0].Accrued.Equal(d("100")))
	assert.Equal(t, "due 10/03/2025", report.Events[0].Cycle)

	got := getDebt(t, st, planID, debt.ID)
	assert.True(t, got.CurrentBalance.Equal(d("1100")))
	assert.True(t, got.InitialBalance.Equal(d("1100")))
	assert.Equal(t, models.CalendarDue{Date: date(2025, time.April, 10)}, got.Schedule)

	// same instant again: the new cycle is not past its grace window
	report, err = svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Accrued)

	got = getDebt(t, st, planID, debt.ID)
	assert.True(t, got.CurrentBalance.Equal(d("1100")))
	assert.Equal(t, models.CalendarDue{Date: date(2025, time.April, 10)}, got.Schedule)
}

func TestAccrualPaymentInWindowAdvancesWithoutAccrual(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	debt := st.PutDebt(calendarLoan(planID, date(2025, time.March, 10)))
	st.PutDebtPayment(models.DebtPayment{DebtID: debt.ID, Amount: d("100"), PaidAt: at(2025, time.March, 11, 12), Source: models.SourceIncome})

	clock := &testClock{now: at(2025, time.March, 16, 9)}
	svc := newTestService(st, clock)

	report, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Advanced)
	assert.Equal(t, 0, report.Accrued)

	got := getDebt(t, st, planID, debt.ID)
	assert.True(t, got.CurrentBalance.Equal(d("1000")))
	assert.Equal(t, models.CalendarDue{Date: date(2025, time.April, 10)}, got.Schedule)
}

func TestAccrualPartialPaymentAccruesRemainder(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	debt := st.PutDebt(calendarLoan(planID, date(2025, time.March, 10)))
	st.PutDebtPayment(models.DebtPayment{DebtID: debt.ID, Amount: d("60"), PaidAt: at(2025, time.March, 1, 12)})
	// after the grace window: does not count for this cycle
	st.PutDebtPayment(models.DebtPayment{DebtID: debt.ID, Amount: d("40"), PaidAt: at(2025, time.March, 17, 12)})

	clock := &testClock{now: at(2025, time.March, 18, 9)}
	svc := newTestService(st, clock)

	_, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)

	got := getDebt(t, st, planID, debt.ID)
	assert.True(t, got.CurrentBalance.Equal(d("1040")))
}

func TestAccrualLegacyScheduleAccruesPreviousMonthOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	debt := st.PutDebt(models.Debt{
		PlanID:         planID,
		Name:           "Store card",
		Type:           models.DebtTypeStoreCard,
		InitialBalance: d("500"),
		CurrentBalance: d("500"),
		Amount:         d("50"),
		Schedule:       models.MonthlyDue{Day: 5},
	})
	st.PutDebtPayment(models.DebtPayment{DebtID: debt.ID, Amount: d("20"), PaidAt: at(2025, time.March, 5, 12), Year: 2025, Month: time.March})

	clock := &testClock{now: at(2025, time.April, 10, 9)}
	svc := newTestService(st, clock)

	report, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	require.Len(t, report.Events, 1)
	assert.Equal(t, "2025-03", report.Events[0].Cycle)

	got := getDebt(t, st, planID, debt.ID)
	assert.True(t, got.CurrentBalance.Equal(d("530")))
	assert.Equal(t, models.MonthlyDue{Day: 5, LastAccrualMonth: calendar.NewMonthKey(2025, time.March)}, got.Schedule)

	report, err = svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.True(t, getDebt(t, st, planID, debt.ID).CurrentBalance.Equal(d("530")))
}

func TestAccrualLegacyScheduleMarksCoveredMonth(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	debt := st.PutDebt(models.Debt{
		PlanID:         planID,
		Name:           "Loan",
		Type:           models.DebtTypeLoan,
		CurrentBalance: d("500"),
		Amount:         d("50"),
		Schedule:       models.MonthlyDue{Day: 5},
	})
	st.PutDebtPayment(models.DebtPayment{DebtID: debt.ID, Amount: d("50"), PaidAt: at(2025, time.March, 5, 12), Year: 2025, Month: time.March})

	clock := &testClock{now: at(2025, time.April, 1, 9)}
	svc := newTestService(st, clock)

	report, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Advanced)

	got := getDebt(t, st, planID, debt.ID)
	assert.True(t, got.CurrentBalance.Equal(d("500")))
	assert.Equal(t, models.MonthlyDue{Day: 5, LastAccrualMonth: calendar.NewMonthKey(2025, time.March)}, got.Schedule)
}

func TestAccrualSkipsUnscheduledSettledAndDerivedDebts(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	st.PutDebt(models.Debt{PlanID: planID, Name: "No schedule", CurrentBalance: d("100"), Amount: d("10")})

	settled := calendarLoan(planID, date(2025, time.March, 10))
	settled.CurrentBalance = d("0")
	settled = st.PutDebt(settled)

	derived := calendarLoan(planID, date(2025, time.March, 10))
	derived.Source = &models.DebtSource{ExpenseName: "Rent"}
	derived = st.PutDebt(derived)

	clock := &testClock{now: at(2025, time.March, 20, 9)}
	svc := newTestService(st, clock)

	report, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)
	assert.Empty(t, report.Events)

	assert.Equal(t, models.CalendarDue{Date: date(2025, time.March, 10)}, getDebt(t, st, planID, settled.ID).Schedule)
	assert.True(t, getDebt(t, st, planID, derived.ID).CurrentBalance.Equal(d("1000")))
}

func TestAccrualFailureDoesNotStopSiblings(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	planID := seedPlan(mem, models.PlanKindPersonal)
	bad := mem.PutDebt(calendarLoan(planID, date(2025, time.March, 10)))
	good := mem.PutDebt(calendarLoan(planID, date(2025, time.March, 10)))

	st := &faultyStore{Store: mem, failDebt: bad.ID}
	clock := &testClock{now: at(2025, time.March, 20, 9)}
	svc := newTestService(st, clock)

	report, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accrued)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, bad.ID, report.Failures[0].ID)
	assert.True(t, errors.Is(report.Err(), errInjected))

	gotBad := getDebt(t, mem, planID, bad.ID)
	assert.True(t, gotBad.CurrentBalance.Equal(d("1000")))
	assert.Equal(t, models.CalendarDue{Date: date(2025, time.March, 10)}, gotBad.Schedule)

	gotGood := getDebt(t, mem, planID, good.ID)
	assert.True(t, gotGood.CurrentBalance.Equal(d("1100")))
}

func TestAccrualNotifiesOwnerAfterCommit(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	debt := st.PutDebt(calendarLoan(planID, date(2025, time.March, 10)))

	notifier := &recordingNotifier{err: errors.New("smtp down")}
	clock := &testClock{now: at(2025, time.March, 20, 9)}
	svc := newTestService(st, clock, WithNotifier(notifier))

	report, err := svc.Accrual.Run(ctx, planID)
	require.NoError(t, err)
	assert.NoError(t, report.Err())

	require.Len(t, notifier.notices, 1)
	assert.Equal(t, "owner@example.com", notifier.to[0].Email)
	assert.Equal(t, debt.ID, notifier.notices[0].DebtID)
	assert.True(t, notifier.notices[0].NewBalance.Equal(d("1100")))

	// a failed notice does not undo the accrual
	assert.True(t, getDebt(t, st, planID, debt.ID).CurrentBalance.Equal(d("1100")))
}

func TestAccrualRunAllCoversEveryPlan(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	first := seedPlan(st, models.PlanKindPersonal)
	second := seedPlan(st, models.PlanKindHoliday)
	a := st.PutDebt(calendarLoan(first, date(2025, time.March, 10)))
	b := st.PutDebt(calendarLoan(second, date(2025, time.March, 10)))

	clock := &testClock{now: at(2025, time.March, 20, 9)}
	svc := newTestService(st, clock)

	reports, err := svc.Accrual.RunAll(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.True(t, getDebt(t, st, first, a.ID).CurrentBalance.Equal(d("1100")))
	assert.True(t, getDebt(t, st, second, b.ID).CurrentBalance.Equal(d("1100")))
}
