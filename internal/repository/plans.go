package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
)

const planColumns = `id, user_id, kind, pay_date, savings_balance, version`

func scanPlan(row interface{ Scan(...any) error }) (*models.PlanSettings, error) {
	p := &models.PlanSettings{}
	var kind string
	if err := row.Scan(&p.PlanID, &p.UserID, &kind, &p.PayDate, &p.SavingsBalance, &p.Version); err != nil {
		return nil, err
	}
	p.Kind = models.PlanKind(kind)
	return p, nil
}

// GetPlanSettings retrieves the settings row of a plan
func (q *Queries) GetPlanSettings(ctx context.Context, planID uuid.UUID) (*models.PlanSettings, error) {
	query := `SELECT ` + planColumns + ` FROM budget.plans WHERE id = $1`
	p, err := scanPlan(q.db.QueryRowContext(ctx, query, planID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan %s: %w", planID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan settings: %w", err)
	}
	return p, nil
}

// ListPlanIDs returns every plan id
func (q *Queries) ListPlanIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM budget.plans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan plan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}
	return ids, nil
}

// AdjustSavingsBalance adds delta to the savings balance in one statement so
// concurrent writers cannot lose an update
func (q *Queries) AdjustSavingsBalance(ctx context.Context, planID uuid.UUID, delta decimal.Decimal) (*models.PlanSettings, error) {
	query := `
		UPDATE budget.plans
		SET savings_balance = GREATEST(0, savings_balance + $2),
		    version = version + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + planColumns
	p, err := scanPlan(q.db.QueryRowContext(ctx, query, planID, delta))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan %s: %w", planID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust savings balance: %w", err)
	}
	return p, nil
}
