package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/models"
)

// CreateDebtPayment inserts an audit row for a debt payment
func (q *Queries) CreateDebtPayment(ctx context.Context, p *models.DebtPayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Year == 0 {
		p.Year, p.Month = p.PaidAt.Year(), p.PaidAt.Month()
	}
	query := `
		INSERT INTO budget.debt_payments (id, debt_id, amount, paid_at, year, month, source, card_debt_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := q.db.ExecContext(ctx, query,
		p.ID, p.DebtID, p.Amount, p.PaidAt, p.Year, int(p.Month), string(p.Source), nullUUID(p.CardDebtID), nullString(p.Notes))
	if err != nil {
		return fmt.Errorf("failed to create debt payment: %w", err)
	}
	return nil
}

// ListDebtPayments returns a debt's payments ordered by payment time
func (q *Queries) ListDebtPayments(ctx context.Context, debtID uuid.UUID) ([]models.DebtPayment, error) {
	query := `
		SELECT id, debt_id, amount, paid_at, year, month, source, card_debt_id, notes
		FROM budget.debt_payments
		WHERE debt_id = $1
		ORDER BY paid_at`
	rows, err := q.db.QueryContext(ctx, query, debtID)
	if err != nil {
		return nil, fmt.Errorf("failed to list debt payments: %w", err)
	}
	defer rows.Close()

	var payments []models.DebtPayment
	for rows.Next() {
		var (
			p      models.DebtPayment
			month  int
			source string
			card   uuid.NullUUID
			notes  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.PaidAt, &p.Year, &month, &source, &card, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan debt payment: %w", err)
		}
		p.Month = time.Month(month)
		p.Source = models.PaymentSource(source)
		p.CardDebtID = uuidPtr(card)
		p.Notes = notes.String
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debt payments: %w", err)
	}
	return payments, nil
}

// SumDebtPaymentsBetween sums payments with after < paid_at <= through
func (q *Queries) SumDebtPaymentsBetween(ctx context.Context, debtID uuid.UUID, after, through time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM budget.debt_payments
		WHERE debt_id = $1 AND paid_at > $2 AND paid_at <= $3`
	var sum decimal.Decimal
	if err := q.db.QueryRowContext(ctx, query, debtID, after, through).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum debt payments: %w", err)
	}
	return sum, nil
}

// SumDebtPaymentsInMonth sums payments booked to a calendar month
func (q *Queries) SumDebtPaymentsInMonth(ctx context.Context, debtID uuid.UUID, month calendar.MonthKey) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM budget.debt_payments
		WHERE debt_id = $1 AND year = $2 AND month = $3`
	var sum decimal.Decimal
	if err := q.db.QueryRowContext(ctx, query, debtID, month.Year, int(month.Month)).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum debt payments: %w", err)
	}
	return sum, nil
}

// SumExpensePayments sums every payment row recorded against an obligation
func (q *Queries) SumExpensePayments(ctx context.Context, expenseID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM budget.expense_payments WHERE expense_id = $1`
	var sum decimal.Decimal
	if err := q.db.QueryRowContext(ctx, query, expenseID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expense payments: %w", err)
	}
	return sum, nil
}

// ListExpensePayments returns an obligation's payment rows
func (q *Queries) ListExpensePayments(ctx context.Context, expenseID uuid.UUID) ([]models.ExpensePayment, error) {
	query := `
		SELECT id, expense_id, amount, paid_at, source
		FROM budget.expense_payments
		WHERE expense_id = $1
		ORDER BY paid_at`
	rows, err := q.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expense payments: %w", err)
	}
	defer rows.Close()

	var payments []models.ExpensePayment
	for rows.Next() {
		var (
			p      models.ExpensePayment
			source string
		)
		if err := rows.Scan(&p.ID, &p.ExpenseID, &p.Amount, &p.PaidAt, &source); err != nil {
			return nil, fmt.Errorf("failed to scan expense payment: %w", err)
		}
		p.Source = models.PaymentSource(source)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expense payments: %w", err)
	}
	return payments, nil
}

// CreateExpensePayment inserts an audit row for an obligation payment
func (q *Queries) CreateExpensePayment(ctx context.Context, p *models.ExpensePayment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO budget.expense_payments (id, expense_id, amount, paid_at, source)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := q.db.ExecContext(ctx, query, p.ID, p.ExpenseID, p.Amount, p.PaidAt, string(p.Source)); err != nil {
		return fmt.Errorf("failed to create expense payment: %w", err)
	}
	return nil
}

// DeleteExpensePayments removes every payment row of an obligation
func (q *Queries) DeleteExpensePayments(ctx context.Context, expenseID uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budget.expense_payments WHERE expense_id = $1`, expenseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expense payments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted expense payments: %w", err)
	}
	return n, nil
}
