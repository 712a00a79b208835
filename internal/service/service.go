// Package service holds the obligation engine: the missed-payment accrual
// processor, the expense to debt carryover and the payment ledger. Every
// mutation runs in a store transaction scoped to one debt or one expense.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/notify"
	"github.com/Dan9191/budget-service/internal/store"
)

// Service bundles the engine routines over one store
type Service struct {
	Accrual   *AccrualProcessor
	Carryover *Carryover
	Ledger    *Ledger
	Debts     *DebtViews

	env *env
}

type env struct {
	store     store.Store
	log       *logrus.Logger
	now       func() time.Time
	loc       *time.Location
	graceDays int
	notifier  notify.Notifier
}

// Option configures the engine
type Option func(*env)

// WithClock injects the clock every calendar calculation reads
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

// WithLocation sets the zone "today" is computed in
func WithLocation(loc *time.Location) Option {
	return func(e *env) { e.loc = loc }
}

// WithOverdueGraceDays sets how many days past its due date an expense
// must be before it converts to a debt
func WithOverdueGraceDays(days int) Option {
	return func(e *env) { e.graceDays = days }
}

// WithNotifier sets where accrual notices go
func WithNotifier(n notify.Notifier) Option {
	return func(e *env) { e.notifier = n }
}

// NewService initializes a new service
func NewService(st store.Store, log *logrus.Logger, opts ...Option) *Service {
	e := &env{
		store:    st,
		log:      log,
		now:      time.Now,
		loc:      time.UTC,
		notifier: notify.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return &Service{
		Accrual:   &AccrualProcessor{env: e},
		Carryover: &Carryover{env: e},
		Ledger:    &Ledger{env: e},
		Debts:     &DebtViews{env: e},
		env:       e,
	}
}

// AuthorizePlan checks that the plan exists and belongs to userID
func (s *Service) AuthorizePlan(ctx context.Context, userID int64, planID uuid.UUID) error {
	plan, err := s.env.store.GetPlanSettings(ctx, planID)
	if err != nil {
		return err
	}
	if plan.UserID != userID {
		return ErrForbidden
	}
	return nil
}

// Today is the engine's current date in its configured zone
func (s *Service) Today() time.Time {
	return s.env.today()
}

func (e *env) today() time.Time {
	return e.now().In(e.loc)
}
