package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/notify"
	"github.com/Dan9191/budget-service/internal/store"
	"github.com/Dan9191/budget-service/internal/store/memory"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, day, hour int) time.Time {
	return time.Date(y, m, day, hour, 0, 0, 0, time.UTC)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(st store.Store, clock *testClock, opts ...Option) *Service {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewService(st, quietLogger(), opts...)
}

func seedPlan(st *memory.Store, kind models.PlanKind) uuid.UUID {
	planID := uuid.New()
	st.PutPlan(models.PlanSettings{PlanID: planID, UserID: 7, Kind: kind, PayDate: 27})
	st.PutUser(models.User{ID: 7, Email: "owner@example.com", Username: "owner"})
	return planID
}

func getDebt(t *testing.T, st store.Queries, planID, debtID uuid.UUID) *models.Debt {
	t.Helper()
	debt, err := st.GetDebt(context.Background(), planID, debtID)
	require.NoError(t, err)
	return debt
}

func getExpense(t *testing.T, st store.Queries, planID, expenseID uuid.UUID) *models.Expense {
	t.Helper()
	e, err := st.GetExpense(context.Background(), planID, expenseID)
	require.NoError(t, err)
	return e
}

var errInjected = errors.New("injected failure")

// faultyStore fails UpdateDebt for one debt inside transactions
type faultyStore struct {
	*memory.Store
	failDebt uuid.UUID
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	return f.Store.WithTx(ctx, func(q store.Queries) error {
		return fn(&faultyQueries{Queries: q, failDebt: f.failDebt})
	})
}

type faultyQueries struct {
	store.Queries
	failDebt uuid.UUID
}

func (q *faultyQueries) UpdateDebt(ctx context.Context, debt *models.Debt) error {
	if debt.ID == q.failDebt {
		return errInjected
	}
	return q.Queries.UpdateDebt(ctx, debt)
}

type recordingNotifier struct {
	mu      sync.Mutex
	to      []*models.User
	notices []notify.AccrualNotice
	err     error
}

func (r *recordingNotifier) NotifyAccrual(_ context.Context, to *models.User, n notify.AccrualNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.to = append(r.to, to)
	r.notices = append(r.notices, n)
	return r.err
}

// lockRecorder notes the order rows are locked in inside transactions
type lockRecorder struct {
	*memory.Store
	locks []string
}

func (r *lockRecorder) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	return r.Store.WithTx(ctx, func(q store.Queries) error {
		return fn(&recordingQueries{Queries: q, rec: r})
	})
}

func (r *lockRecorder) take() []string {
	locks := r.locks
	r.locks = nil
	return locks
}

type recordingQueries struct {
	store.Queries
	rec *lockRecorder
}

func (q *recordingQueries) LockExpense(ctx context.Context, planID, expenseID uuid.UUID) (*models.Expense, error) {
	q.rec.locks = append(q.rec.locks, "expense:"+expenseID.String())
	return q.Queries.LockExpense(ctx, planID, expenseID)
}

func (q *recordingQueries) LockDebt(ctx context.Context, planID, debtID uuid.UUID) (*models.Debt, error) {
	q.rec.locks = append(q.rec.locks, "debt:"+debtID.String())
	return q.Queries.LockDebt(ctx, planID, debtID)
}
