package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/service"
)

// AccrualRunner runs the missed-payment accrual over every plan
type AccrualRunner interface {
	RunAll(ctx context.Context) ([]*service.AccrualReport, error)
}

// CarryoverRunner converts unpaid expenses of every plan into debts
type CarryoverRunner interface {
	RunAll(ctx context.Context) ([]*service.CarryoverReport, error)
}

// AccrualJob folds missed debt payments into balances
type AccrualJob struct {
	runner AccrualRunner
	log    *logrus.Entry
}

// NewAccrualJob creates a new accrual job
func NewAccrualJob(runner AccrualRunner, log *logrus.Logger) *AccrualJob {
	return &AccrualJob{runner: runner, log: log.WithField("job", "missed_payment_accrual")}
}

// Name returns the job name
func (j *AccrualJob) Name() string {
	return "missed_payment_accrual"
}

// Run executes the accrual over every plan. Per-debt failures are part of
// the returned error; the debts that succeeded stay committed.
func (j *AccrualJob) Run(ctx context.Context) error {
	start := time.Now()
	reports, err := j.runner.RunAll(ctx)

	var accrued, deferred, failed int
	for _, r := range reports {
		accrued += r.Accrued
		deferred += r.Deferred
		failed += len(r.Failures)
	}
	j.log.WithFields(logrus.Fields{
		"plans":    len(reports),
		"accrued":  accrued,
		"deferred": deferred,
		"failed":   failed,
		"duration": time.Since(start).String(),
	}).Info("Accrual job finished")
	return err
}

// CarryoverJob turns overdue expenses into derived debts
type CarryoverJob struct {
	runner CarryoverRunner
	log    *logrus.Entry
}

// NewCarryoverJob creates a new carryover job
func NewCarryoverJob(runner CarryoverRunner, log *logrus.Logger) *CarryoverJob {
	return &CarryoverJob{runner: runner, log: log.WithField("job", "expense_carryover")}
}

// Name returns the job name
func (j *CarryoverJob) Name() string {
	return "expense_carryover"
}

// Run executes the backfill and current month passes for every plan
func (j *CarryoverJob) Run(ctx context.Context) error {
	start := time.Now()
	reports, err := j.runner.RunAll(ctx)

	var converted, settled, failed int
	for _, r := range reports {
		converted += r.Converted
		settled += r.Settled
		failed += len(r.Failures)
	}
	j.log.WithFields(logrus.Fields{
		"passes":    len(reports),
		"converted": converted,
		"settled":   settled,
		"failed":    failed,
		"duration":  time.Since(start).String(),
	}).Info("Carryover job finished")
	return err
}
