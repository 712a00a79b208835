// Package notify delivers best-effort notices to plan owners. Callers invoke
// it after their transaction has committed and only log failures.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/models"
)

// AccrualNotice describes a missed cycle that was folded into a debt
type AccrualNotice struct {
	PlanID     uuid.UUID
	DebtID     uuid.UUID
	DebtName   string
	Accrued    decimal.Decimal
	NewBalance decimal.Decimal
	// Cycle is a human label for the missed cycle, e.g. "due 10/03/2025" or "2025-02".
	Cycle string
}

// Notifier sends notices about engine events
type Notifier interface {
	NotifyAccrual(ctx context.Context, to *models.User, n AccrualNotice) error
}

// Nop discards every notice
type Nop struct{}

// NotifyAccrual implements Notifier.
func (Nop) NotifyAccrual(context.Context, *models.User, AccrualNotice) error { return nil }
