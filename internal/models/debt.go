package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtType classifies a tracked balance
type DebtType string

const (
	DebtTypeCreditCard  DebtType = "credit_card"
	DebtTypeStoreCard   DebtType = "store_card"
	DebtTypeLoan        DebtType = "loan"
	DebtTypeMortgage    DebtType = "mortgage"
	DebtTypeInstallment DebtType = "installment"
	DebtTypeOther       DebtType = "other"
)

// IsCard reports whether charges can be made against this debt type
func (t DebtType) IsCard() bool {
	return t == DebtTypeCreditCard || t == DebtTypeStoreCard
}

// Valid reports whether t is a known debt type
func (t DebtType) Valid() bool {
	switch t {
	case DebtTypeCreditCard, DebtTypeStoreCard, DebtTypeLoan, DebtTypeMortgage, DebtTypeInstallment, DebtTypeOther:
		return true
	}
	return false
}

// SourceTypeExpense tags debts materialized from an unpaid obligation
const SourceTypeExpense = "expense"

// DebtSource links a derived debt back to the obligation it came from
type DebtSource struct {
	ExpenseID    uuid.UUID  `json:"source_expense_id"`
	MonthKey     string     `json:"source_month_key"`
	Year         int        `json:"source_year"`
	CategoryID   *uuid.UUID `json:"source_category_id,omitempty"`
	CategoryName string     `json:"source_category_name,omitempty"`
	ExpenseName  string     `json:"source_expense_name"`
}

// Debt represents a tracked balance owed on a budget plan
type Debt struct {
	ID                       uuid.UUID           `json:"id"`
	PlanID                   uuid.UUID           `json:"plan_id"`
	Name                     string              `json:"name"`
	Type                     DebtType            `json:"type"`
	InitialBalance           decimal.Decimal     `json:"initial_balance"`
	CurrentBalance           decimal.Decimal     `json:"current_balance"`
	Amount                   decimal.Decimal     `json:"amount"`
	PaidAmount               decimal.Decimal     `json:"paid_amount"`
	Paid                     bool                `json:"paid"`
	MonthlyMinimum           decimal.NullDecimal `json:"monthly_minimum"`
	InterestRate             decimal.NullDecimal `json:"interest_rate"`
	InstallmentMonths        int                 `json:"installment_months,omitempty"`
	Schedule                 DueSchedule         `json:"-"`
	CreditLimit              decimal.NullDecimal `json:"credit_limit"`
	DefaultPaymentSource     PaymentSource       `json:"default_payment_source,omitempty"`
	DefaultPaymentCardDebtID *uuid.UUID          `json:"default_payment_card_debt_id,omitempty"`
	Source                   *DebtSource         `json:"source,omitempty"`
	CreatedAt                time.Time           `json:"created_at"`
	UpdatedAt                time.Time           `json:"updated_at"`
}

type debtFields Debt

type debtJSON struct {
	debtFields
	DueDate          string `json:"due_date,omitempty"`
	DueDay           *int   `json:"due_day,omitempty"`
	LastAccrualMonth string `json:"last_accrual_month,omitempty"`
}

const dueDateLayout = "2006-01-02"

// MarshalJSON writes the due schedule as flat due_date / due_day /
// last_accrual_month fields
func (d Debt) MarshalJSON() ([]byte, error) {
	dueDate, dueDay, last := ScheduleFields(d.Schedule)
	out := debtJSON{debtFields: debtFields(d), DueDay: dueDay, LastAccrualMonth: last}
	if dueDate != nil {
		out.DueDate = dueDate.Format(dueDateLayout)
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the due schedule from the flat fields
func (d *Debt) UnmarshalJSON(b []byte) error {
	var in debtJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*d = Debt(in.debtFields)

	var dueDate *time.Time
	if in.DueDate != "" {
		t, err := time.Parse(dueDateLayout, in.DueDate)
		if err != nil {
			return fmt.Errorf("invalid due_date: %w", err)
		}
		dueDate = &t
	}
	d.Schedule = ScheduleFromFields(dueDate, in.DueDay, in.LastAccrualMonth)
	return nil
}

// IsDerived reports whether the debt was materialized from an obligation
func (d *Debt) IsDerived() bool {
	return d.Source != nil
}

// SourceType returns "expense" for derived debts and "" otherwise
func (d *Debt) SourceType() string {
	if d.IsDerived() {
		return SourceTypeExpense
	}
	return ""
}

// Accrue folds a missed remainder into the principal so percent-paid stays meaningful
func (d *Debt) Accrue(remaining decimal.Decimal) {
	if !remaining.IsPositive() {
		return
	}
	d.CurrentBalance = d.CurrentBalance.Add(remaining)
	d.InitialBalance = d.InitialBalance.Add(remaining)
	d.Paid = false
}

// Charge applies a new card charge: the card becomes unpaid and its principal
// grows to cover the new balance
func (d *Debt) Charge(delta decimal.Decimal) {
	if !delta.IsPositive() {
		return
	}
	d.CurrentBalance = decimal.Max(decimal.Zero, d.CurrentBalance.Add(delta))
	d.InitialBalance = decimal.Max(d.InitialBalance, d.CurrentBalance)
	d.PaidAmount = decimal.Min(decimal.Max(decimal.Zero, d.PaidAmount), d.InitialBalance)
	d.Paid = false
}

// ApplyPayment reduces the balance, never below zero, and returns the amount applied
func (d *Debt) ApplyPayment(amount decimal.Decimal) decimal.Decimal {
	applied := decimal.Min(amount, d.CurrentBalance)
	if !applied.IsPositive() {
		return decimal.Zero
	}
	d.CurrentBalance = decimal.Max(decimal.Zero, d.CurrentBalance.Sub(applied))
	d.PaidAmount = d.PaidAmount.Add(applied)
	d.Paid = d.CurrentBalance.IsZero()
	return applied
}

// Settle marks a derived debt as fully covered while keeping its history
func (d *Debt) Settle() {
	d.CurrentBalance = decimal.Zero
	d.PaidAmount = d.InitialBalance
	d.Paid = true
}
