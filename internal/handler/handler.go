package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/middleware"
	"github.com/Dan9191/budget-service/internal/models"
	"github.com/Dan9191/budget-service/internal/service"
	"github.com/Dan9191/budget-service/internal/store"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Health reports that the process is serving
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reconcileBody struct {
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	PaymentSource   string          `json:"payment_source"`
	CardDebtID      *uuid.UUID      `json:"card_debt_id"`
	AdjustBalances  bool            `json:"adjust_balances"`
	ResetOnDecrease bool            `json:"reset_on_decrease"`
	Clamp           bool            `json:"clamp"`
}

// ReconcileExpensePayment sets an expense's paid amount
func (h *Handler) ReconcileExpensePayment(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.plan(w, r)
	if !ok {
		return
	}
	expenseID, err := uuid.Parse(mux.Vars(r)["expenseID"])
	if err != nil {
		http.Error(w, "Invalid expense id", http.StatusBadRequest)
		return
	}
	var body reconcileBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Ledger.ReconcileExpense(r.Context(), service.ReconcileRequest{
		PlanID:            planID,
		ExpenseID:         expenseID,
		DesiredPaidAmount: body.PaidAmount,
		Source:            models.PaymentSource(body.PaymentSource),
		CardDebtID:        body.CardDebtID,
		AdjustBalances:    body.AdjustBalances,
		ResetOnDecrease:   body.ResetOnDecrease,
		Clamp:             body.Clamp,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type debtPaymentBody struct {
	Amount        decimal.Decimal   `json:"amount"`
	Month         calendar.MonthKey `json:"month"`
	PaymentSource string            `json:"payment_source"`
	CardDebtID    *uuid.UUID        `json:"card_debt_id"`
	Notes         string            `json:"notes"`
}

// RecordDebtPayment records a payment against a debt
func (h *Handler) RecordDebtPayment(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.plan(w, r)
	if !ok {
		return
	}
	debtID, err := uuid.Parse(mux.Vars(r)["debtID"])
	if err != nil {
		http.Error(w, "Invalid debt id", http.StatusBadRequest)
		return
	}
	var body debtPaymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Ledger.RecordDebtPayment(r.Context(), service.DebtPaymentRequest{
		PlanID:     planID,
		DebtID:     debtID,
		Amount:     body.Amount,
		Month:      body.Month,
		Source:     models.PaymentSource(body.PaymentSource),
		CardDebtID: body.CardDebtID,
		Notes:      body.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// RunAccrual runs the missed-payment accrual for the plan
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.plan(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Accrual.Run(r.Context(), planID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RunCarryover converts the unpaid expenses of one month. The period
// defaults to the current month.
func (h *Handler) RunCarryover(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.plan(w, r)
	if !ok {
		return
	}
	var req service.UnpaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Period.IsZero() {
		req.Period = calendar.MonthOf(h.svc.Today())
	}

	report, err := h.svc.Carryover.ProcessUnpaid(r.Context(), planID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// BackfillCarryover converts the unpaid expenses of every earlier month
func (h *Handler) BackfillCarryover(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.plan(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Carryover.Backfill(r.Context(), planID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// OverdueCarryover converts every past due or partially paid expense
func (h *Handler) OverdueCarryover(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.plan(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Carryover.ProcessOverdue(r.Context(), planID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ExpenseDebts lists the visible derived debts of the plan
func (h *Handler) ExpenseDebts(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.plan(w, r)
	if !ok {
		return
	}
	debts, err := h.svc.Carryover.ExpenseDebts(r.Context(), planID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debts)
}

// DebtsDue lists the plan's debts with what is owed on them now
func (h *Handler) DebtsDue(w http.ResponseWriter, r *http.Request) {
	planID, ok := h.plan(w, r)
	if !ok {
		return
	}
	includeDerived := false
	if raw := r.URL.Query().Get("include_derived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Invalid include_derived", http.StatusBadRequest)
			return
		}
		includeDerived = v
	}

	due, err := h.svc.Debts.DebtsDue(r.Context(), planID, includeDerived)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

// plan parses the plan id and checks the caller owns it
func (h *Handler) plan(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	planID, err := uuid.Parse(mux.Vars(r)["planID"])
	if err != nil {
		http.Error(w, "Invalid plan id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	if err := h.svc.AuthorizePlan(r.Context(), userID, planID); err != nil {
		h.writeError(w, r, err)
		return uuid.Nil, false
	}
	return planID, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrUnknownSource),
		errors.Is(err, service.ErrCardRequired),
		errors.Is(err, service.ErrInvalidCard),
		errors.Is(err, service.ErrPeriodRequired):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrDebtSettled):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithField("path", r.URL.Path).Errorf("Request failed: %v", err)
		msg = "Internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
