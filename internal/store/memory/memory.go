// Package memory is an in-memory implementation of store.Store. It is safe for
// concurrent use; transactions are serialized and run against a copy of the
// data that replaces the live state only when fn succeeds. Data is lost on
// restart - for persistence, use the Postgres repository.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
)

// Store is an in-memory store.Store
type Store struct {
	mu    sync.Mutex
	st    *state
	clock func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used for created/updated timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{st: newState(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTx implements store.Store.
func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&queries{st: work, clock: s.clock}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) q() *queries {
	return &queries{st: s.st, clock: s.clock}
}

// Seeding helpers. They overwrite rows with the same id.

// PutPlan stores plan settings.
func (s *Store) PutPlan(p models.PlanSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.plans[p.PlanID] = p
}

// PutUser stores a user.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

// PutDebt stores a debt, assigning an id when missing.
func (s *Store) PutDebt(d models.Debt) models.Debt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.clock()
	}
	s.st.debts[d.ID] = cloneDebt(d)
	return d
}

// PutExpense stores an expense, assigning an id when missing.
func (s *Store) PutExpense(e models.Expense) models.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock()
	}
	s.st.expenses[e.ID] = e
	return e
}

// PutDebtPayment appends a debt payment row.
func (s *Store) PutDebtPayment(p models.DebtPayment) models.DebtPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.q().CreateDebtPayment(context.Background(), &p)
	return p
}

// PutExpensePayment appends an expense payment row.
func (s *Store) PutExpensePayment(p models.ExpensePayment) models.ExpensePayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.q().CreateExpensePayment(context.Background(), &p)
	return p
}

// CountDebts returns the number of stored debts, derived ones included.
func (s *Store) CountDebts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.debts)
}

// store.Queries, each call under the store lock.

func (s *Store) GetPlanSettings(ctx context.Context, planID uuid.UUID) (*models.PlanSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().GetPlanSettings(ctx, planID)
}

func (s *Store) ListPlanIDs(ctx context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().ListPlanIDs(ctx)
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().GetUser(ctx, userID)
}

func (s *Store) AdjustSavingsBalance(ctx context.Context, planID uuid.UUID, delta decimal.Decimal) (*models.PlanSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().AdjustSavingsBalance(ctx, planID, delta)
}

func (s *Store) GetDebt(ctx context.Context, planID, debtID uuid.UUID) (*models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().GetDebt(ctx, planID, debtID)
}

func (s *Store) LockDebt(ctx context.Context, planID, debtID uuid.UUID) (*models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().LockDebt(ctx, planID, debtID)
}

func (s *Store) ListDebts(ctx context.Context, planID uuid.UUID, filter store.DebtFilter) ([]models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().ListDebts(ctx, planID, filter)
}

func (s *Store) UpdateDebt(ctx context.Context, debt *models.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateDebt(ctx, debt)
}

func (s *Store) UpsertDerivedDebt(ctx context.Context, in store.DerivedDebt) (*models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpsertDerivedDebt(ctx, in)
}

func (s *Store) FindDerivedDebt(ctx context.Context, planID, expenseID uuid.UUID) (*models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().FindDerivedDebt(ctx, planID, expenseID)
}

func (s *Store) CreateDebtPayment(ctx context.Context, p *models.DebtPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().CreateDebtPayment(ctx, p)
}

func (s *Store) ListDebtPayments(ctx context.Context, debtID uuid.UUID) ([]models.DebtPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().ListDebtPayments(ctx, debtID)
}

func (s *Store) SumDebtPaymentsBetween(ctx context.Context, debtID uuid.UUID, after, through time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SumDebtPaymentsBetween(ctx, debtID, after, through)
}

func (s *Store) SumDebtPaymentsInMonth(ctx context.Context, debtID uuid.UUID, month calendar.MonthKey) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SumDebtPaymentsInMonth(ctx, debtID, month)
}

func (s *Store) GetExpense(ctx context.Context, planID, expenseID uuid.UUID) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().GetExpense(ctx, planID, expenseID)
}

func (s *Store) LockExpense(ctx context.Context, planID, expenseID uuid.UUID) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().LockExpense(ctx, planID, expenseID)
}

func (s *Store) ListExpenses(ctx context.Context, planID uuid.UUID, filter store.ExpenseFilter) ([]models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().ListExpenses(ctx, planID, filter)
}

func (s *Store) UpdateExpensePaid(ctx context.Context, expenseID uuid.UUID, paidAmount decimal.Decimal, paid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateExpensePaid(ctx, expenseID, paidAmount, paid)
}

func (s *Store) SumExpensePayments(ctx context.Context, expenseID uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SumExpensePayments(ctx, expenseID)
}

func (s *Store) ListExpensePayments(ctx context.Context, expenseID uuid.UUID) ([]models.ExpensePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().ListExpensePayments(ctx, expenseID)
}

func (s *Store) CreateExpensePayment(ctx context.Context, p *models.ExpensePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().CreateExpensePayment(ctx, p)
}

func (s *Store) DeleteExpensePayments(ctx context.Context, expenseID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteExpensePayments(ctx, expenseID)
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
