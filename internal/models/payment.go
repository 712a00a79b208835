package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentSource is where a payment's money notionally comes from
type PaymentSource string

const (
	SourceIncome     PaymentSource = "income"
	SourceSavings    PaymentSource = "savings"
	SourceCreditCard PaymentSource = "credit_card"
	SourceEmergency  PaymentSource = "emergency"
	SourceExtra      PaymentSource = "extra"
	SourceOther      PaymentSource = "other"
)

// ParsePaymentSource maps user input onto a known source. Legacy spellings
// ("extra_funds", "extra_untracked") are folded into SourceExtra.
func ParsePaymentSource(raw string) (PaymentSource, bool) {
	switch raw {
	case "", "income":
		return SourceIncome, true
	case "savings":
		return SourceSavings, true
	case "credit_card":
		return SourceCreditCard, true
	case "emergency":
		return SourceEmergency, true
	case "extra", "extra_funds", "extra_untracked":
		return SourceExtra, true
	case "other":
		return SourceOther, true
	}
	return "", false
}

// DebtPayment is an immutable audit row recorded against a debt
type DebtPayment struct {
	ID         uuid.UUID       `json:"id"`
	DebtID     uuid.UUID       `json:"debt_id"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	Source     PaymentSource   `json:"source"`
	CardDebtID *uuid.UUID      `json:"card_debt_id,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// ExpensePayment is an immutable audit row recorded against an obligation
type ExpensePayment struct {
	ID        uuid.UUID       `json:"id"`
	ExpenseID uuid.UUID       `json:"expense_id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	Source    PaymentSource   `json:"source"`
}
