package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/budget"
	"github.com/dvloznov/budget-tracker/internal/domain"
)

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var (
		vErr *domain.ValidationError
		aErr *domain.AuthError
		sErr *domain.StoreError
		fErr *domain.ForecastError
	)

	switch {
	case errors.As(err, &vErr):
		middleware.WriteError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &aErr):
		middleware.WriteError(w, http.StatusUnauthorized, aErr.Error())
	case errors.Is(err, budget.ErrForecastInProgress):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &sErr):
		log.Error().Err(err).Msg("Store operation failed")
		middleware.WriteError(w, http.StatusBadGateway, "Store operation failed: "+sErr.Err.Error())
	case errors.As(err, &fErr):
		log.Error().Err(err).Msg("Forecast failed")
		middleware.WriteError(w, http.StatusBadGateway, fErr.Error())
	default:
		log.Error().Err(err).Msg("Unexpected error")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
