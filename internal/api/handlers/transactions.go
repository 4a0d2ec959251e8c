package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/logger"
)

// TransactionsHandler handles the ledger endpoints.
type TransactionsHandler struct {
	ledger *ledger.Ledger
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(l *ledger.Ledger, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{ledger: l, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	v := h.ledger.View()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": v.Transactions,
		"count":        len(v.Transactions),
		"metrics":      v.Report,
		"mode":         v.Mode,
		"version":      v.Version,
		"busy":         v.Busy,
	})
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var draft domain.TransactionDraft
	if err := decodeJSON(r, &draft); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.ledger.Create(r.Context(), draft)
	if err != nil {
		writeDomainError(w, logger.FromContext(r.Context()), err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteTransaction handles DELETE /api/transactions/{id}?confirm=yes|no.
// The confirm answer stands in for the interactive confirmation prompt.
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var answer bool
	switch r.URL.Query().Get("confirm") {
	case "yes", "true":
		answer = true
	case "no", "false":
		answer = false
	default:
		middleware.WriteError(w, http.StatusPreconditionRequired, "Deletion must be confirmed with confirm=yes or confirm=no")
		return
	}

	confirm := ledger.ConfirmFunc(func(ctx context.Context, id string) (bool, error) {
		return answer, nil
	})

	deleted, err := h.ledger.Delete(r.Context(), id, confirm)
	if err != nil {
		writeDomainError(w, logger.FromContext(r.Context()), err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"deleted": deleted,
	})
}

// SetMode handles PUT /api/mode
func (h *TransactionsHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode ledger.EntryMode `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.ledger.SetMode(req.Mode); err != nil {
		writeDomainError(w, logger.FromContext(r.Context()), err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]ledger.EntryMode{"mode": req.Mode})
}

// GetMetrics handles GET /api/metrics
func (h *TransactionsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.ledger.View().Report)
}
