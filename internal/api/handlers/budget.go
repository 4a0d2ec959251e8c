package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/budget"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/logger"
)

// BudgetHandler handles the item and forecast endpoints.
type BudgetHandler struct {
	tracker *budget.Tracker
	log     zerolog.Logger
}

// NewBudgetHandler creates a new budget handler.
func NewBudgetHandler(t *budget.Tracker, log zerolog.Logger) *BudgetHandler {
	return &BudgetHandler{tracker: t, log: log}
}

// ListItems handles GET /api/items
func (h *BudgetHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	v := h.tracker.View()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":   v.Items,
		"count":   len(v.Items),
		"summary": v.Summary,
		"version": v.Version,
	})
}

// AddItem handles POST /api/items
func (h *BudgetHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var draft domain.ItemDraft
	if err := decodeJSON(r, &draft); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.tracker.AddItem(r.Context(), draft)
	if err != nil {
		log := logger.FromContext(r.Context())
		if id != "" && errors.Is(err, budget.ErrSummaryDiverged) {
			log.Error().Err(err).Str("item_id", id).Msg("Summary diverged from items")
			middleware.WriteJSON(w, http.StatusBadGateway, map[string]string{
				"id":    id,
				"error": err.Error(),
			})
			return
		}
		writeDomainError(w, log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// GetForecast handles GET /api/forecast
func (h *BudgetHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	v := h.tracker.View()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"forecasts": v.Forecasts,
		"busy":      v.ForecastBusy,
	})
}

// GenerateForecast handles POST /api/forecast
func (h *BudgetHandler) GenerateForecast(w http.ResponseWriter, r *http.Request) {
	records, err := h.tracker.GenerateForecast(r.Context())
	if err != nil {
		writeDomainError(w, logger.FromContext(r.Context()), err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"forecasts": records,
	})
}
