package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
)

type state struct {
	plans           map[uuid.UUID]models.PlanSettings
	users           map[int64]models.User
	debts           map[uuid.UUID]models.Debt
	expenses        map[uuid.UUID]models.Expense
	debtPayments    []models.DebtPayment
	expensePayments []models.ExpensePayment
}

func newState() *state {
	return &state{
		plans:    make(map[uuid.UUID]models.PlanSettings),
		users:    make(map[int64]models.User),
		debts:    make(map[uuid.UUID]models.Debt),
		expenses: make(map[uuid.UUID]models.Expense),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.debts {
		c.debts[k] = cloneDebt(v)
	}
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	c.debtPayments = append([]models.DebtPayment(nil), s.debtPayments...)
	c.expensePayments = append([]models.ExpensePayment(nil), s.expensePayments...)
	return c
}

func cloneDebt(d models.Debt) models.Debt {
	if d.Source != nil {
		src := *d.Source
		d.Source = &src
	}
	if d.DefaultPaymentCardDebtID != nil {
		id := *d.DefaultPaymentCardDebtID
		d.DefaultPaymentCardDebtID = &id
	}
	return d
}

// queries runs against a state without locking; the caller holds the lock.
type queries struct {
	st    *state
	clock func() time.Time
}

func (q *queries) GetPlanSettings(_ context.Context, planID uuid.UUID) (*models.PlanSettings, error) {
	p, ok := q.st.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", planID, store.ErrNotFound)
	}
	return &p, nil
}

func (q *queries) ListPlanIDs(_ context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(q.st.plans))
	for id := range q.st.plans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (q *queries) GetUser(_ context.Context, userID int64) (*models.User, error) {
	u, ok := q.st.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, store.ErrNotFound)
	}
	return &u, nil
}

func (q *queries) AdjustSavingsBalance(_ context.Context, planID uuid.UUID, delta decimal.Decimal) (*models.PlanSettings, error) {
	p, ok := q.st.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", planID, store.ErrNotFound)
	}
	p.SavingsBalance = p.AdjustedSavings(delta)
	p.Version++
	q.st.plans[planID] = p
	return &p, nil
}

func (q *queries) GetDebt(_ context.Context, planID, debtID uuid.UUID) (*models.Debt, error) {
	d, ok := q.st.debts[debtID]
	if !ok || d.PlanID != planID {
		return nil, fmt.Errorf("debt %s: %w", debtID, store.ErrNotFound)
	}
	d = cloneDebt(d)
	return &d, nil
}

// LockDebt is GetDebt: transactions are already serialized.
func (q *queries) LockDebt(ctx context.Context, planID, debtID uuid.UUID) (*models.Debt, error) {
	return q.GetDebt(ctx, planID, debtID)
}

func (q *queries) ListDebts(_ context.Context, planID uuid.UUID, filter store.DebtFilter) ([]models.Debt, error) {
	var out []models.Debt
	for _, d := range q.st.debts {
		if d.PlanID != planID {
			continue
		}
		if filter.ExcludeDerived && d.IsDerived() {
			continue
		}
		if filter.OnlyDerived && !d.IsDerived() {
			continue
		}
		if filter.WithBalance && !d.CurrentBalance.IsPositive() {
			continue
		}
		if filter.OnlyCards && !d.Type.IsCard() {
			continue
		}
		out = append(out, cloneDebt(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (q *queries) UpdateDebt(_ context.Context, debt *models.Debt) error {
	existing, ok := q.st.debts[debt.ID]
	if !ok || existing.PlanID != debt.PlanID {
		return fmt.Errorf("debt %s: %w", debt.ID, store.ErrNotFound)
	}
	debt.CreatedAt = existing.CreatedAt
	debt.UpdatedAt = q.clock()
	q.st.debts[debt.ID] = cloneDebt(*debt)
	return nil
}

func (q *queries) findDerived(planID, expenseID uuid.UUID) (models.Debt, bool) {
	for _, d := range q.st.debts {
		if d.PlanID == planID && d.Source != nil && d.Source.ExpenseID == expenseID {
			return d, true
		}
	}
	return models.Debt{}, false
}

func (q *queries) FindDerivedDebt(_ context.Context, planID, expenseID uuid.UUID) (*models.Debt, error) {
	d, ok := q.findDerived(planID, expenseID)
	if !ok {
		return nil, fmt.Errorf("derived debt for expense %s: %w", expenseID, store.ErrNotFound)
	}
	d = cloneDebt(d)
	return &d, nil
}

func (q *queries) UpsertDerivedDebt(_ context.Context, in store.DerivedDebt) (*models.Debt, error) {
	if !in.Remaining.IsPositive() {
		return nil, fmt.Errorf("derived debt for expense %s: remaining must be positive", in.Source.ExpenseID)
	}
	now := q.clock()
	src := in.Source

	d, ok := q.findDerived(in.PlanID, src.ExpenseID)
	if ok {
		d.InitialBalance = decimal.Max(d.InitialBalance, in.Remaining)
		d.CurrentBalance = in.Remaining
		d.PaidAmount = decimal.Max(decimal.Zero, d.InitialBalance.Sub(in.Remaining))
		d.Paid = false
		d.Source.Year = src.Year
		d.Source.ExpenseName = src.ExpenseName
		if src.CategoryID != nil {
			d.Source.CategoryID = src.CategoryID
		}
		if src.CategoryName != "" {
			d.Source.CategoryName = src.CategoryName
		}
		d.UpdatedAt = now
	} else {
		d = models.Debt{
			ID:             uuid.New(),
			PlanID:         in.PlanID,
			Name:           in.Name,
			Type:           models.DebtTypeOther,
			InitialBalance: in.Remaining,
			CurrentBalance: in.Remaining,
			Amount:         in.Remaining,
			PaidAmount:     decimal.Zero,
			Source:         &src,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	q.st.debts[d.ID] = cloneDebt(d)
	d = cloneDebt(d)
	return &d, nil
}

func (q *queries) CreateDebtPayment(_ context.Context, p *models.DebtPayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Year == 0 {
		p.Year, p.Month = p.PaidAt.Year(), p.PaidAt.Month()
	}
	q.st.debtPayments = append(q.st.debtPayments, *p)
	return nil
}

func (q *queries) ListDebtPayments(_ context.Context, debtID uuid.UUID) ([]models.DebtPayment, error) {
	var out []models.DebtPayment
	for _, p := range q.st.debtPayments {
		if p.DebtID == debtID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (q *queries) SumDebtPaymentsBetween(_ context.Context, debtID uuid.UUID, after, through time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range q.st.debtPayments {
		if p.DebtID == debtID && p.PaidAt.After(after) && !p.PaidAt.After(through) {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (q *queries) SumDebtPaymentsInMonth(_ context.Context, debtID uuid.UUID, month calendar.MonthKey) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range q.st.debtPayments {
		if p.DebtID == debtID && p.Year == month.Year && p.Month == month.Month {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (q *queries) GetExpense(_ context.Context, planID, expenseID uuid.UUID) (*models.Expense, error) {
	e, ok := q.st.expenses[expenseID]
	if !ok || e.PlanID != planID {
		return nil, fmt.Errorf("expense %s: %w", expenseID, store.ErrNotFound)
	}
	return &e, nil
}

// LockExpense is GetExpense: transactions are already serialized.
func (q *queries) LockExpense(ctx context.Context, planID, expenseID uuid.UUID) (*models.Expense, error) {
	return q.GetExpense(ctx, planID, expenseID)
}

func (q *queries) ListExpenses(_ context.Context, planID uuid.UUID, filter store.ExpenseFilter) ([]models.Expense, error) {
	ids := make(map[uuid.UUID]struct{}, len(filter.IDs))
	for _, id := range filter.IDs {
		ids[id] = struct{}{}
	}

	var out []models.Expense
	for _, e := range q.st.expenses {
		if e.PlanID != planID {
			continue
		}
		if !filter.Period.IsZero() && e.Period() != filter.Period {
			continue
		}
		if !filter.Before.IsZero() && !e.Period().Before(filter.Before) {
			continue
		}
		if filter.UnpaidOnly && e.Paid {
			continue
		}
		if filter.PartialOnly && !e.PaidAmount.IsPositive() {
			continue
		}
		if len(ids) > 0 {
			if _, ok := ids[e.ID]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period() != out[j].Period() {
			return out[i].Period().Before(out[j].Period())
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (q *queries) UpdateExpensePaid(_ context.Context, expenseID uuid.UUID, paidAmount decimal.Decimal, paid bool) error {
	e, ok := q.st.expenses[expenseID]
	if !ok {
		return fmt.Errorf("expense %s: %w", expenseID, store.ErrNotFound)
	}
	e.PaidAmount = paidAmount
	e.Paid = paid
	e.UpdatedAt = q.clock()
	q.st.expenses[expenseID] = e
	return nil
}

func (q *queries) SumExpensePayments(_ context.Context, expenseID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range q.st.expensePayments {
		if p.ExpenseID == expenseID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (q *queries) ListExpensePayments(_ context.Context, expenseID uuid.UUID) ([]models.ExpensePayment, error) {
	var out []models.ExpensePayment
	for _, p := range q.st.expensePayments {
		if p.ExpenseID == expenseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (q *queries) CreateExpensePayment(_ context.Context, p *models.ExpensePayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	q.st.expensePayments = append(q.st.expensePayments, *p)
	return nil
}

func (q *queries) DeleteExpensePayments(_ context.Context, expenseID uuid.UUID) (int64, error) {
	kept := q.st.expensePayments[:0:0]
	var removed int64
	for _, p := range q.st.expensePayments {
		if p.ExpenseID == expenseID {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	q.st.expensePayments = kept
	return removed, nil
}

var _ store.Queries = (*queries)(nil)
