package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dan9191/ledger-engine/internal/card"
	"github.com/Dan9191/ledger-engine/internal/ledger"
	"github.com/Dan9191/ledger-engine/internal/loan"
	"github.com/Dan9191/ledger-engine/internal/models"
	"github.com/Dan9191/ledger-engine/internal/money"
	"github.com/Dan9191/ledger-engine/internal/repository"
	"github.com/Dan9191/ledger-engine/internal/service"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register is owned by the external identity service.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not implemented", http.StatusNotImplemented)
}

// Login is owned by the external identity service.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not implemented", http.StatusNotImplemented)
}

// GetAccount handles GET /accounts/me
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.Account(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// GetStatement handles GET /transactions/statement
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Statement(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.TransactionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetDashboard handles GET /dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

type moveRequest struct {
	Amount   json.Number `json:"amount"`
	Category string      `json:"category"`
}

// Deposit handles POST /transactions/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.svc.Deposit)
}

// Withdraw handles POST /transactions/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.svc.Withdraw)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request,
	op func(context.Context, money.Money, string) (*models.TransactionEntry, error)) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := money.Parse(req.Amount.String(), money.DefaultScale)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}
	entry, err := op(r.Context(), amount, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type transferRequest struct {
	DestinationAccount string      `json:"destination_account"`
	Amount             json.Number `json:"amount"`
	Category           string      `json:"category"`
}

// Transfer handles POST /transactions/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := money.Parse(req.Amount.String(), money.DefaultScale)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}
	entry, err := h.svc.Transfer(r.Context(), req.DestinationAccount, amount, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type loanRequest struct {
	Principal    json.Number `json:"principal"`
	Installments int         `json:"installments"`
}

// QuoteLoan handles POST /loans/quote
func (h *Handler) QuoteLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	principal, err := money.Parse(req.Principal.String(), money.DefaultScale)
	if err != nil {
		http.Error(w, "Invalid principal", http.StatusBadRequest)
		return
	}
	quote, err := h.svc.QuoteLoan(r.Context(), principal, req.Installments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// RequestLoan handles POST /loans/request
func (h *Handler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	principal, err := money.Parse(req.Principal.String(), money.DefaultScale)
	if err != nil {
		http.Error(w, "Invalid principal", http.StatusBadRequest)
		return
	}
	l, err := h.svc.RequestLoan(r.Context(), principal, req.Installments)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// ListLoans handles GET /loans/list
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.svc.ListLoans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	writeJSON(w, http.StatusOK, loans)
}

// GetCard handles GET /cards/me
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Card(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RequestCard handles POST /cards/request
func (h *Handler) RequestCard(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.RequestCard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ToggleCard handles POST /cards/block
func (h *Handler) ToggleCard(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.ToggleCard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RevealCVV handles GET /cards/cvv. A 204 means an active reveal was
// dismissed rather than re-fetched.
func (h *Handler) RevealCVV(w http.ResponseWriter, r *http.Request) {
	reveal, err := h.svc.RevealCVV(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if reveal == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, reveal)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain failures to HTTP statuses. Ledger inconsistencies
// are deliberately generic on the wire; the identifiers are already logged.
func writeError(w http.ResponseWriter, err error) {
	var inc *ledger.InconsistencyError
	switch {
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrCardNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, loan.ErrInvalidParameters),
		errors.Is(err, loan.ErrExceedsLimit),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrCardNotEligible),
		errors.Is(err, repository.ErrSameAccount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, card.ErrSecretUnavailable):
		http.Error(w, "Secret unavailable", http.StatusServiceUnavailable)
	case errors.As(err, &inc):
		http.Error(w, "Statement temporarily unavailable", http.StatusInternalServerError)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
