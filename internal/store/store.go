// Package store defines the persistence contract the obligation engine runs
// against. Implementations must give WithTx full ACID semantics: either every
// write made through the Queries handed to fn is committed, or none is.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
)

// ErrNotFound is returned when a row addressed by id does not exist
var ErrNotFound = errors.New("not found")

// DebtFilter narrows ListDebts
type DebtFilter struct {
	// ExcludeDerived drops debts materialized from obligations.
	ExcludeDerived bool
	// OnlyDerived keeps only debts materialized from obligations.
	OnlyDerived bool
	// WithBalance keeps only debts with currentBalance > 0.
	WithBalance bool
	// OnlyCards keeps only card-type debts.
	OnlyCards bool
}

// ExpenseFilter narrows ListExpenses
type ExpenseFilter struct {
	// Period restricts to one plan month when set.
	Period calendar.MonthKey
	// Before restricts to months strictly earlier than this key when set.
	Before calendar.MonthKey
	// UnpaidOnly keeps paid=false.
	UnpaidOnly bool
	// PartialOnly keeps paidAmount > 0.
	PartialOnly bool
	// IDs restricts to the given ids when non-empty.
	IDs []uuid.UUID
}

// DerivedDebt is the payload of an upsert keyed by the source obligation
type DerivedDebt struct {
	PlanID    uuid.UUID
	Name      string
	Remaining decimal.Decimal
	Source    models.DebtSource
}

// Queries is the set of typed queries available both outside and inside a
// transaction. Lock* methods take a row lock when run inside WithTx.
type Queries interface {
	GetPlanSettings(ctx context.Context, planID uuid.UUID) (*models.PlanSettings, error)
	ListPlanIDs(ctx context.Context) ([]uuid.UUID, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// AdjustSavingsBalance adds delta (floored at zero) and bumps the version.
	AdjustSavingsBalance(ctx context.Context, planID uuid.UUID, delta decimal.Decimal) (*models.PlanSettings, error)

	GetDebt(ctx context.Context, planID, debtID uuid.UUID) (*models.Debt, error)
	LockDebt(ctx context.Context, planID, debtID uuid.UUID) (*models.Debt, error)
	ListDebts(ctx context.Context, planID uuid.UUID, filter DebtFilter) ([]models.Debt, error)
	UpdateDebt(ctx context.Context, debt *models.Debt) error
	// UpsertDerivedDebt inserts or updates the single derived debt keyed by
	// the source obligation id and returns the stored row.
	UpsertDerivedDebt(ctx context.Context, in DerivedDebt) (*models.Debt, error)
	FindDerivedDebt(ctx context.Context, planID, expenseID uuid.UUID) (*models.Debt, error)

	CreateDebtPayment(ctx context.Context, p *models.DebtPayment) error
	ListDebtPayments(ctx context.Context, debtID uuid.UUID) ([]models.DebtPayment, error)
	// SumDebtPaymentsBetween sums payments with after < paidAt <= through.
	SumDebtPaymentsBetween(ctx context.Context, debtID uuid.UUID, after, through time.Time) (decimal.Decimal, error)
	SumDebtPaymentsInMonth(ctx context.Context, debtID uuid.UUID, month calendar.MonthKey) (decimal.Decimal, error)

	GetExpense(ctx context.Context, planID, expenseID uuid.UUID) (*models.Expense, error)
	LockExpense(ctx context.Context, planID, expenseID uuid.UUID) (*models.Expense, error)
	ListExpenses(ctx context.Context, planID uuid.UUID, filter ExpenseFilter) ([]models.Expense, error)
	UpdateExpensePaid(ctx context.Context, expenseID uuid.UUID, paidAmount decimal.Decimal, paid bool) error

	SumExpensePayments(ctx context.Context, expenseID uuid.UUID) (decimal.Decimal, error)
	ListExpensePayments(ctx context.Context, expenseID uuid.UUID) ([]models.ExpensePayment, error)
	CreateExpensePayment(ctx context.Context, p *models.ExpensePayment) error
	DeleteExpensePayments(ctx context.Context, expenseID uuid.UUID) (int64, error)
}

// Store is a Queries bound to the database plus transaction support
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
