package domain

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Item is a budget entry of the summary-driven tracker. It has no status:
// every item is a recorded event on a plain calendar date.
type Item struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`
	Date        civil.Date      `json:"date"`
}

// ItemDraft is user input for a new item.
type ItemDraft struct {
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`
	Date        civil.Date      `json:"date"`
}

// ValidatedItem is an item draft that passed validation.
type ValidatedItem struct {
	Amount      decimal.Decimal
	Description string
	Type        TransactionType
	Date        civil.Date
}

// Validate applies the same invariants as TransactionDraft.Validate.
func (d ItemDraft) Validate() (ValidatedItem, error) {
	amount, err := validateAmount(d.Amount)
	if err != nil {
		return ValidatedItem{}, err
	}

	description := strings.TrimSpace(d.Description)
	if description == "" {
		return ValidatedItem{}, NewValidationError("description", "description is required")
	}

	if !d.Type.Valid() {
		return ValidatedItem{}, NewValidationError("type", "type must be income or expense")
	}

	if !d.Date.IsValid() {
		return ValidatedItem{}, NewValidationError("date", "date is required")
	}

	return ValidatedItem{
		Amount:      amount,
		Description: description,
		Type:        d.Type,
		Date:        d.Date,
	}, nil
}

// BudgetSummary is the per-user running aggregate kept next to the items.
type BudgetSummary struct {
	Budget  decimal.Decimal `json:"budget"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Apply returns the summary after recording one more item.
func (s BudgetSummary) Apply(t TransactionType, amount decimal.Decimal) BudgetSummary {
	switch t {
	case TypeIncome:
		s.Budget = s.Budget.Add(amount)
		s.Income = s.Income.Add(amount)
	case TypeExpense:
		s.Budget = s.Budget.Sub(amount)
		s.Expense = s.Expense.Add(amount)
	}
	return s
}

// ForecastRecord is one month of predictions returned by the forecast
// provider. It is never persisted.
type ForecastRecord struct {
	Month            string  `json:"month"`
	PredictedBudget  float64 `json:"predictedBudget"`
	PredictedIncome  float64 `json:"predictedIncome"`
	PredictedExpense float64 `json:"predictedExpense"`
}
