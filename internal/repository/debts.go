package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/store"
)

const debtColumns = `id, plan_id, name, type, initial_balance, current_balance, amount, paid_amount, paid,
	monthly_minimum, interest_rate, installment_months, due_date, due_day, last_accrual_month,
	credit_limit, default_payment_source, default_payment_card_debt_id,
	source_type, source_expense_id, source_month_key, source_year, source_category_id,
	source_category_name, source_expense_name, created_at, updated_at`

func scanDebt(row interface{ Scan(...any) error }) (*models.Debt, error) {
	d := &models.Debt{}
	var (
		debtType          string
		installmentMonths sql.NullInt32
		dueDate           sql.NullTime
		dueDay            sql.NullInt32
		lastAccrual       sql.NullString
		defaultSource     sql.NullString
		defaultCard       uuid.NullUUID
		sourceType        sql.NullString
		sourceExpense     uuid.NullUUID
		sourceMonth       sql.NullString
		sourceYear        sql.NullInt32
		sourceCategory    uuid.NullUUID
		sourceCatName     sql.NullString
		sourceExpName     sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.PlanID, &d.Name, &debtType, &d.InitialBalance, &d.CurrentBalance, &d.Amount, &d.PaidAmount, &d.Paid,
		&d.MonthlyMinimum, &d.InterestRate, &installmentMonths, &dueDate, &dueDay, &lastAccrual,
		&d.CreditLimit, &defaultSource, &defaultCard,
		&sourceType, &sourceExpense, &sourceMonth, &sourceYear, &sourceCategory,
		&sourceCatName, &sourceExpName, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = models.DebtType(debtType)
	d.InstallmentMonths = int(installmentMonths.Int32)
	d.DefaultPaymentSource = models.PaymentSource(defaultSource.String)
	d.DefaultPaymentCardDebtID = uuidPtr(defaultCard)

	var datePtr *time.Time
	if dueDate.Valid {
		datePtr = &dueDate.Time
	}
	var dayPtr *int
	if dueDay.Valid {
		day := int(dueDay.Int32)
		dayPtr = &day
	}
	d.Schedule = models.ScheduleFromFields(datePtr, dayPtr, lastAccrual.String)

	if sourceType.String == models.SourceTypeExpense && sourceExpense.Valid {
		d.Source = &models.DebtSource{
			ExpenseID:    sourceExpense.UUID,
			MonthKey:     sourceMonth.String,
			Year:         int(sourceYear.Int32),
			CategoryID:   uuidPtr(sourceCategory),
			CategoryName: sourceCatName.String,
			ExpenseName:  sourceExpName.String,
		}
	}
	return d, nil
}

func (q *Queries) getDebt(ctx context.Context, planID, debtID uuid.UUID, lock bool) (*models.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM budget.debts WHERE id = $1 AND plan_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	d, err := scanDebt(q.db.QueryRowContext(ctx, query, debtID, planID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("debt %s: %w", debtID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debt: %w", err)
	}
	return d, nil
}

// GetDebt retrieves a debt scoped to its plan
func (q *Queries) GetDebt(ctx context.Context, planID, debtID uuid.UUID) (*models.Debt, error) {
	return q.getDebt(ctx, planID, debtID, false)
}

// LockDebt reads a debt with a row lock held until the transaction ends
func (q *Queries) LockDebt(ctx context.Context, planID, debtID uuid.UUID) (*models.Debt, error) {
	return q.getDebt(ctx, planID, debtID, true)
}

// ListDebts returns the plan's debts ordered by creation
func (q *Queries) ListDebts(ctx context.Context, planID uuid.UUID, filter store.DebtFilter) ([]models.Debt, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + debtColumns + ` FROM budget.debts WHERE plan_id = $1`)
	if filter.ExcludeDerived {
		sb.WriteString(` AND source_expense_id IS NULL`)
	}
	if filter.OnlyDerived {
		sb.WriteString(` AND source_expense_id IS NOT NULL`)
	}
	if filter.WithBalance {
		sb.WriteString(` AND current_balance > 0`)
	}
	if filter.OnlyCards {
		sb.WriteString(` AND type IN ('credit_card', 'store_card')`)
	}
	sb.WriteString(` ORDER BY created_at, id`)

	rows, err := q.db.QueryContext(ctx, sb.String(), planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	defer rows.Close()

	var debts []models.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debt: %w", err)
		}
		debts = append(debts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debts: %w", err)
	}
	return debts, nil
}

// UpdateDebt persists balances, flags and the due schedule of a debt
func (q *Queries) UpdateDebt(ctx context.Context, debt *models.Debt) error {
	dueDate, dueDay, lastAccrual := models.ScheduleFields(debt.Schedule)
	var date sql.NullTime
	if dueDate != nil {
		date = sql.NullTime{Time: *dueDate, Valid: true}
	}
	var day sql.NullInt32
	if dueDay != nil {
		day = sql.NullInt32{Int32: int32(*dueDay), Valid: true}
	}

	query := `
		UPDATE budget.debts
		SET name = $3, type = $4, initial_balance = $5, current_balance = $6, amount = $7,
		    paid_amount = $8, paid = $9, due_date = $10, due_day = $11, last_accrual_month = $12,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND plan_id = $2
		RETURNING updated_at`
	err := q.db.QueryRowContext(ctx, query,
		debt.ID, debt.PlanID, debt.Name, string(debt.Type), debt.InitialBalance, debt.CurrentBalance, debt.Amount,
		debt.PaidAmount, debt.Paid, date, day, nullString(lastAccrual),
	).Scan(&debt.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("debt %s: %w", debt.ID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	return nil
}

// UpsertDerivedDebt keeps exactly one derived debt per source obligation.
// On conflict the principal only grows and the paid amount tracks the gap.
func (q *Queries) UpsertDerivedDebt(ctx context.Context, in store.DerivedDebt) (*models.Debt, error) {
	if !in.Remaining.IsPositive() {
		return nil, fmt.Errorf("derived debt for expense %s: remaining must be positive", in.Source.ExpenseID)
	}
	src := in.Source
	query := `
		INSERT INTO budget.debts (
			id, plan_id, name, type, initial_balance, current_balance, amount, paid_amount, paid,
			source_type, source_expense_id, source_month_key, source_year,
			source_category_id, source_category_name, source_expense_name)
		VALUES ($1, $2, $3, 'other', $4, $4, $4, 0, FALSE, 'expense', $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_expense_id) DO UPDATE
		SET initial_balance = GREATEST(budget.debts.initial_balance, EXCLUDED.current_balance),
		    current_balance = EXCLUDED.current_balance,
		    paid_amount = GREATEST(0, GREATEST(budget.debts.initial_balance, EXCLUDED.current_balance) - EXCLUDED.current_balance),
		    paid = FALSE,
		    source_year = EXCLUDED.source_year,
		    source_expense_name = EXCLUDED.source_expense_name,
		    source_category_id = COALESCE(EXCLUDED.source_category_id, budget.debts.source_category_id),
		    source_category_name = COALESCE(EXCLUDED.source_category_name, budget.debts.source_category_name),
		    updated_at = CURRENT_TIMESTAMP
		WHERE budget.debts.plan_id = EXCLUDED.plan_id
		RETURNING ` + debtColumns
	d, err := scanDebt(q.db.QueryRowContext(ctx, query,
		uuid.New(), in.PlanID, in.Name, in.Remaining,
		src.ExpenseID, src.MonthKey, src.Year,
		nullUUID(src.CategoryID), nullString(src.CategoryName), src.ExpenseName,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("derived debt for expense %s belongs to another plan: %w", src.ExpenseID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert derived debt: %w", err)
	}
	return d, nil
}

// FindDerivedDebt returns the debt materialized from an obligation
func (q *Queries) FindDerivedDebt(ctx context.Context, planID, expenseID uuid.UUID) (*models.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM budget.debts WHERE plan_id = $1 AND source_expense_id = $2`
	d, err := scanDebt(q.db.QueryRowContext(ctx, query, planID, expenseID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("derived debt for expense %s: %w", expenseID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find derived debt: %w", err)
	}
	return d, nil
}
