package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
	"github.com/Dan9191/budget-service/internal/store/memory"
)

func TestAuthorizePlan(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	planID := seedPlan(st, models.PlanKindPersonal)
	svc := newTestService(st, &testClock{now: time.Now()})

	assert.NoError(t, svc.AuthorizePlan(ctx, 7, planID))
	assert.ErrorIs(t, svc.AuthorizePlan(ctx, 8, planID), ErrForbidden)
	assert.ErrorIs(t, svc.AuthorizePlan(ctx, 7, uuid.New()), store.ErrNotFound)
}

func TestTodayUsesConfiguredZone(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	clock := &testClock{now: at(2025, time.March, 31, 20)}
	svc := newTestService(memory.NewStore(), clock, WithLocation(loc))

	today := svc.Today()
	assert.Equal(t, time.April, today.Month())
	assert.Equal(t, 1, today.Day())
}
