package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/config"
	"github.com/Dan9191/budget-service/internal/middleware"
)

// NewRouter wires the public and the authenticated routes
func NewRouter(h *Handler, cfg *config.Config, logger *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recoverer(logger), middleware.RequestLogger(logger))

	// Public routes
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	// Protected routes
	plans := r.PathPrefix("/plans/{planID}").Subrouter()
	plans.Use(middleware.AuthMiddleware(cfg))
	plans.HandleFunc("/expenses/{expenseID}/payments", h.ReconcileExpensePayment).Methods(http.MethodPost)
	plans.HandleFunc("/debts/{debtID}/payments", h.RecordDebtPayment).Methods(http.MethodPost)
	plans.HandleFunc("/debts/due", h.DebtsDue).Methods(http.MethodGet)
	plans.HandleFunc("/expense-debts", h.ExpenseDebts).Methods(http.MethodGet)
	plans.HandleFunc("/accrual/run", h.RunAccrual).Methods(http.MethodPost)
	plans.HandleFunc("/carryover/run", h.RunCarryover).Methods(http.MethodPost)
	plans.HandleFunc("/carryover/backfill", h.BackfillCarryover).Methods(http.MethodPost)
	plans.HandleFunc("/carryover/overdue", h.OverdueCarryover).Methods(http.MethodPost)
	return r
}
