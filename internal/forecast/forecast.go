// Package forecast asks a generative model for monthly budget predictions
// based on the user's item history.
package forecast

import (
	"context"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

const (
	// DefaultModelName is the Gemini model used when none is configured.
	DefaultModelName = "gemini-2.5-flash"

	// Months is how many upcoming months the model is asked to predict.
	Months = 3
)

// Forecaster produces forecast records from item history. Implementations
// return either a complete result or an error, never a partial list.
type Forecaster interface {
	Generate(ctx context.Context, items []domain.Item) ([]domain.ForecastRecord, error)
}
