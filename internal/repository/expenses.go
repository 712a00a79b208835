package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
)

const expenseColumns = `id, plan_id, name, amount, paid_amount, paid, due_date, year, month,
	category_id, category_name, is_allocation, payment_source, card_debt_id, created_at, updated_at`

func scanExpense(row interface{ Scan(...any) error }) (*models.Expense, error) {
	e := &models.Expense{}
	var (
		dueDate  sql.NullTime
		month    int
		category uuid.NullUUID
		catName  sql.NullString
		source   sql.NullString
		cardDebt uuid.NullUUID
	)
	err := row.Scan(&e.ID, &e.PlanID, &e.Name, &e.Amount, &e.PaidAmount, &e.Paid, &dueDate, &e.Year, &month,
		&category, &catName, &e.IsAllocation, &source, &cardDebt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		e.DueDate = &dueDate.Time
	}
	e.Month = time.Month(month)
	e.CategoryID = uuidPtr(category)
	e.CategoryName = catName.String
	e.PaymentSource = models.PaymentSource(source.String)
	e.CardDebtID = uuidPtr(cardDebt)
	return e, nil
}

func (q *Queries) getExpense(ctx context.Context, planID, expenseID uuid.UUID, lock bool) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM budget.expenses WHERE id = $1 AND plan_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	e, err := scanExpense(q.db.QueryRowContext(ctx, query, expenseID, planID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// GetExpense retrieves an obligation scoped to its plan
func (q *Queries) GetExpense(ctx context.Context, planID, expenseID uuid.UUID) (*models.Expense, error) {
	return q.getExpense(ctx, planID, expenseID, false)
}

// LockExpense reads an obligation with a row lock held until the transaction ends
func (q *Queries) LockExpense(ctx context.Context, planID, expenseID uuid.UUID) (*models.Expense, error) {
	return q.getExpense(ctx, planID, expenseID, true)
}

// ListExpenses returns obligations ordered by period and name
func (q *Queries) ListExpenses(ctx context.Context, planID uuid.UUID, filter store.ExpenseFilter) ([]models.Expense, error) {
	var sb strings.Builder
	args := []any{planID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString(`SELECT ` + expenseColumns + ` FROM budget.expenses WHERE plan_id = $1`)
	if !filter.Period.IsZero() {
		sb.WriteString(` AND year = ` + arg(filter.Period.Year) + ` AND month = ` + arg(int(filter.Period.Month)))
	}
	if !filter.Before.IsZero() {
		y := arg(filter.Before.Year)
		m := arg(int(filter.Before.Month))
		sb.WriteString(` AND (year < ` + y + ` OR (year = ` + y + ` AND month < ` + m + `))`)
	}
	if filter.UnpaidOnly {
		sb.WriteString(` AND paid = FALSE`)
	}
	if filter.PartialOnly {
		sb.WriteString(` AND paid_amount > 0`)
	}
	if len(filter.IDs) > 0 {
		ids := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			ids[i] = id.String()
		}
		sb.WriteString(` AND id = ANY(` + arg(pq.Array(ids)) + `::uuid[])`)
	}
	sb.WriteString(` ORDER BY year, month, name, id`)

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}

// UpdateExpensePaid stores the reconciled paid amount and flag
func (q *Queries) UpdateExpensePaid(ctx context.Context, expenseID uuid.UUID, paidAmount decimal.Decimal, paid bool) error {
	query := `
		UPDATE budget.expenses
		SET paid_amount = $2, paid = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	res, err := q.db.ExecContext(ctx, query, expenseID, paidAmount, paid)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, store.ErrNotFound)
	}
	return nil
}
