package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/calendar"
)

// Expense represents a periodic obligation in a plan month
type Expense struct {
	ID            uuid.UUID       `json:"id"`
	PlanID        uuid.UUID       `json:"plan_id"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Paid          bool            `json:"paid"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Year          int             `json:"year"`
	Month         time.Month      `json:"month"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName  string          `json:"category_name,omitempty"`
	IsAllocation  bool            `json:"is_allocation"`
	PaymentSource PaymentSource   `json:"payment_source,omitempty"`
	CardDebtID    *uuid.UUID      `json:"card_debt_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Period returns the plan month the obligation belongs to
func (e *Expense) Period() calendar.MonthKey {
	return calendar.MonthKey{Year: e.Year, Month: e.Month}
}

// Remaining is the unpaid shortfall, never negative
func (e *Expense) Remaining() decimal.Decimal {
	return decimal.Max(decimal.Zero, e.Amount.Sub(e.PaidAmount))
}

// DueOn resolves the obligation's due date using the plan pay day as fallback
func (e *Expense) DueOn(payDay int, loc *time.Location) time.Time {
	return calendar.ExpenseDueDate(e.Year, e.Month, e.DueDate, payDay, loc)
}

// IsOverdue reports whether today is past the due date plus graceDays
func (e *Expense) IsOverdue(payDay, graceDays int, now time.Time) bool {
	threshold := calendar.AddDays(e.DueOn(payDay, now.Location()), graceDays)
	return calendar.DateOnly(now).After(threshold)
}

// Debtable reports whether a shortfall on this obligation may become a debt
func (e *Expense) Debtable() bool {
	return !e.IsAllocation && !IsNonDebtCategory(e.CategoryName)
}

var nonDebtCategories = map[string]struct{}{
	"savings":        {},
	"emergency fund": {},
	"emergency":      {},
	"investments":    {},
	"investment":     {},
	"allocations":    {},
	"transfers":      {},
}

// IsNonDebtCategory reports categories whose shortfall is a choice, not a debt
func IsNonDebtCategory(name string) bool {
	_, ok := nonDebtCategories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
