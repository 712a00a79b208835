package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
	"github.com/Dan9191/budget-service/internal/store/memory"
)

func bill(planID uuid.UUID, amount string) models.Expense {
	return models.Expense{
		PlanID:       planID,
		Name:         "Electricity",
		Amount:       d(amount),
		Year:         2025,
		Month:        time.March,
		CategoryName: "Utilities",
	}
}

func paymentRows(t *testing.T, st store.Queries, expenseID uuid.UUID) []models.ExpensePayment {
	t.Helper()
	rows, err := st.ListExpensePayments(context.Background(), expenseID)
	require.NoError(t, err)
	return rows
}

func rowTotal(rows []models.ExpensePayment) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	return sum
}

func TestReconcileDecreaseWithResetRebuildsRows(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := bill(planID, "100")
	e.PaidAmount = d("70")
	e = st.PutExpense(e)
	st.PutExpensePayment(models.ExpensePayment{ExpenseID: e.ID, Amount: d("30"), Source: models.SourceIncome})
	st.PutExpensePayment(models.ExpensePayment{ExpenseID: e.ID, Amount: d("40"), Source: models.SourceIncome})

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{
		PlanID:            planID,
		ExpenseID:         e.ID,
		DesiredPaidAmount: d("20"),
		Source:            models.SourceIncome,
		ResetOnDecrease:   true,
	})
	require.NoError(t, err)
	assert.True(t, res.FinalPaidAmount.Equal(d("20")))
	assert.False(t, res.FinalPaid)
	assert.True(t, res.ChangedPayments)

	rows := paymentRows(t, st, e.ID)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(d("20")))
	assert.True(t, getExpense(t, st, planID, e.ID).PaidAmount.Equal(d("20")))
}

func TestReconcileDecreaseWithoutResetKeepsRecordedTotal(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := bill(planID, "100")
	e.PaidAmount = d("70")
	e = st.PutExpense(e)
	st.PutExpensePayment(models.ExpensePayment{ExpenseID: e.ID, Amount: d("70")})

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("20")})
	require.NoError(t, err)
	assert.True(t, res.FinalPaidAmount.Equal(d("70")))
	assert.False(t, res.ChangedPayments)

	rows := paymentRows(t, st, e.ID)
	assert.True(t, rowTotal(rows).Equal(getExpense(t, st, planID, e.ID).PaidAmount))
}

func TestReconcileIncreaseChargesOnlyCard(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := st.PutExpense(bill(planID, "100"))
	card := st.PutDebt(models.Debt{PlanID: planID, Name: "Visa", Type: models.DebtTypeCreditCard, Paid: true})

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{
		PlanID:            planID,
		ExpenseID:         e.ID,
		DesiredPaidAmount: d("30"),
		Source:            models.SourceCreditCard,
		AdjustBalances:    true,
	})
	require.NoError(t, err)
	assert.True(t, res.CardResolved)
	require.NotNil(t, res.CardDebtID)
	assert.Equal(t, card.ID, *res.CardDebtID)

	got := getDebt(t, st, planID, card.ID)
	assert.True(t, got.CurrentBalance.Equal(d("30")))
	assert.True(t, got.InitialBalance.Equal(d("30")))
	assert.False(t, got.Paid)

	rows := paymentRows(t, st, e.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.SourceCreditCard, rows[0].Source)
}

func TestReconcileUsesRequestedCard(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := st.PutExpense(bill(planID, "100"))
	st.PutDebt(models.Debt{PlanID: planID, Name: "Visa", Type: models.DebtTypeCreditCard})
	storeCard := st.PutDebt(models.Debt{PlanID: planID, Name: "Store", Type: models.DebtTypeStoreCard, CurrentBalance: d("10"), InitialBalance: d("50")})

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{
		PlanID:            planID,
		ExpenseID:         e.ID,
		DesiredPaidAmount: d("25"),
		Source:            models.SourceCreditCard,
		CardDebtID:        &storeCard.ID,
		AdjustBalances:    true,
	})
	require.NoError(t, err)
	assert.True(t, res.CardResolved)

	got := getDebt(t, st, planID, storeCard.ID)
	assert.True(t, got.CurrentBalance.Equal(d("35")))
	assert.True(t, got.InitialBalance.Equal(d("50")))
}

func TestReconcileUnresolvedCardStillRecordsPayment(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := st.PutExpense(bill(planID, "100"))
	first := st.PutDebt(models.Debt{PlanID: planID, Name: "Visa", Type: models.DebtTypeCreditCard})
	second := st.PutDebt(models.Debt{PlanID: planID, Name: "Amex", Type: models.DebtTypeCreditCard})

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{
		PlanID:            planID,
		ExpenseID:         e.ID,
		DesiredPaidAmount: d("30"),
		Source:            models.SourceCreditCard,
		AdjustBalances:    true,
	})
	require.NoError(t, err)
	assert.False(t, res.CardResolved)
	assert.Nil(t, res.CardDebtID)
	assert.True(t, res.FinalPaidAmount.Equal(d("30")))

	assert.True(t, getDebt(t, st, planID, first.ID).CurrentBalance.IsZero())
	assert.True(t, getDebt(t, st, planID, second.ID).CurrentBalance.IsZero())
}

func TestReconcileSavingsFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := uuid.New()
	st.PutPlan(models.PlanSettings{PlanID: planID, Kind: models.PlanKindPersonal, PayDate: 27, SavingsBalance: d("20")})
	e := st.PutExpense(bill(planID, "100"))

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{
		PlanID:            planID,
		ExpenseID:         e.ID,
		DesiredPaidAmount: d("50"),
		Source:            models.SourceSavings,
		AdjustBalances:    true,
	})
	require.NoError(t, err)
	assert.True(t, res.FinalPaidAmount.Equal(d("50")))

	plan, err := st.GetPlanSettings(ctx, planID)
	require.NoError(t, err)
	assert.True(t, plan.SavingsBalance.IsZero())
	assert.Equal(t, int64(1), plan.Version)
}

func TestReconcileWithoutAdjustLeavesBalances(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := uuid.New()
	st.PutPlan(models.PlanSettings{PlanID: planID, Kind: models.PlanKindPersonal, SavingsBalance: d("200")})
	e := st.PutExpense(bill(planID, "100"))

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("100"), Source: models.SourceSavings})
	require.NoError(t, err)
	assert.True(t, res.FinalPaid)

	plan, err := st.GetPlanSettings(ctx, planID)
	require.NoError(t, err)
	assert.True(t, plan.SavingsBalance.Equal(d("200")))
	assert.True(t, getExpense(t, st, planID, e.ID).Paid)
}

func TestReconcileRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := st.PutExpense(bill(planID, "100"))

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	tests := []struct {
		name string
		req  ReconcileRequest
		err  error
	}{
		{"above amount", ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("100.01")}, ErrInvalidAmount},
		{"negative", ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("-1")}, ErrInvalidAmount},
		{"unknown source", ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("10"), Source: "lottery"}, ErrUnknownSource},
		{"missing expense", ReconcileRequest{PlanID: planID, ExpenseID: uuid.New(), DesiredPaidAmount: d("10")}, store.ErrNotFound},
		{"other plan", ReconcileRequest{PlanID: uuid.New(), ExpenseID: e.ID, DesiredPaidAmount: d("10")}, store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ledger.ReconcileExpense(ctx, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Empty(t, paymentRows(t, st, e.ID))
	assert.True(t, getExpense(t, st, planID, e.ID).PaidAmount.IsZero())
}

func TestReconcileKeepsRowsAndPaidAmountInStep(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := st.PutExpense(bill(planID, "100"))

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	steps := []struct {
		desired string
		reset   bool
	}{
		{"40", false},
		{"60", false},
		{"10", false},
		{"10", true},
		{"100", false},
		{"0", true},
	}
	for _, step := range steps {
		_, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{
			PlanID:            planID,
			ExpenseID:         e.ID,
			DesiredPaidAmount: d(step.desired),
			ResetOnDecrease:   step.reset,
		})
		require.NoError(t, err)

		got := getExpense(t, st, planID, e.ID)
		assert.True(t, rowTotal(paymentRows(t, st, e.ID)).Equal(got.PaidAmount), "after %s", step.desired)
		assert.Equal(t, got.PaidAmount.GreaterThanOrEqual(got.Amount), got.Paid)
	}
	assert.Empty(t, paymentRows(t, st, e.ID))
}

func TestReconcileSettlesDerivedDebt(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := bill(planID, "100")
	e.PaidAmount = d("40")
	e = st.PutExpense(e)
	st.PutExpensePayment(models.ExpensePayment{ExpenseID: e.ID, Amount: d("40")})

	clock := &testClock{now: at(2025, time.March, 28, 9)}
	svc := newTestService(st, clock)

	_, err := svc.Carryover.ProcessUnpaid(ctx, planID, UnpaidRequest{Period: march2025})
	require.NoError(t, err)

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("100")})
	require.NoError(t, err)
	require.NotNil(t, res.DerivedDebt)
	assert.True(t, res.DerivedDebt.Paid)
	assert.True(t, res.DerivedDebt.CurrentBalance.IsZero())

	debts := derivedDebts(t, st, planID)
	require.Len(t, debts, 1)
	assert.True(t, debts[0].Paid)
}

func TestReconcileDoesNotCreateDerivedDebt(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := st.PutExpense(bill(planID, "100"))

	svc := newTestService(st, &testClock{now: at(2025, time.April, 28, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("30")})
	require.NoError(t, err)
	assert.Nil(t, res.DerivedDebt)
	assert.Empty(t, derivedDebts(t, st, planID))
}

func TestReconcileClampsWhenAsked(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	e := st.PutExpense(bill(planID, "100"))

	svc := newTestService(st, &testClock{now: at(2025, time.March, 12, 9)})

	res, err := svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("150"), Clamp: true})
	require.NoError(t, err)
	assert.True(t, res.FinalPaidAmount.Equal(d("100")))
	assert.True(t, res.FinalPaid)

	res, err = svc.Ledger.ReconcileExpense(ctx, ReconcileRequest{PlanID: planID, ExpenseID: e.ID, DesiredPaidAmount: d("-5"), Clamp: true, ResetOnDecrease: true})
	require.NoError(t, err)
	assert.True(t, res.FinalPaidAmount.IsZero())
	assert.Empty(t, paymentRows(t, st, e.ID))
}
