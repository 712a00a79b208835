package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanKind distinguishes everyday budgets from one-off plans
type PlanKind string

const (
	PlanKindPersonal PlanKind = "personal"
	PlanKindHoliday  PlanKind = "holiday"
	PlanKindCarnival PlanKind = "carnival"
)

// PlanSettings is the per-plan settings aggregate. SavingsBalance is only
// changed through AdjustSavingsBalance, which bumps Version.
type PlanSettings struct {
	PlanID         uuid.UUID       `json:"plan_id"`
	UserID         int64           `json:"user_id"`
	Kind           PlanKind        `json:"kind"`
	PayDate        int             `json:"pay_date"`
	SavingsBalance decimal.Decimal `json:"savings_balance"`
	Version        int64           `json:"version"`
}

// ConvertsOverdue reports whether unpaid obligations on this plan become debts
func (s *PlanSettings) ConvertsOverdue() bool {
	return s.Kind == "" || s.Kind == PlanKindPersonal
}

// AdjustedSavings returns the savings balance after delta, floored at zero
func (s *PlanSettings) AdjustedSavings(delta decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, s.SavingsBalance.Add(delta))
}
