package domain

import (
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType determines the sign a record carries when combined into totals.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// TransactionStatus separates recorded events from user-declared future ones.
type TransactionStatus string

const (
	// StatusActual entries are dated by the store clock and count toward real totals.
	StatusActual TransactionStatus = "actual"
	// StatusForecasted entries carry a user-chosen date and only feed the forward window.
	StatusForecasted TransactionStatus = "forecasted"
)

// Valid reports whether s is one of the known statuses.
func (s TransactionStatus) Valid() bool {
	return s == StatusActual || s == StatusForecasted
}

// Transaction is a single financial event as mirrored from the user's collection.
// Amount is always positive; direction is carried by Type.
type Transaction struct {
	ID       string            `json:"id"`
	Amount   decimal.Decimal   `json:"amount"`
	Category string            `json:"category"`
	Type     TransactionType   `json:"type"`
	Status   TransactionStatus `json:"status"`

	// EffectiveDate is the date used for windowing: store time for actual
	// entries, the chosen day at midday for forecasted ones.
	EffectiveDate time.Time `json:"date"`

	// CreatedAt is the store-assigned insertion time, used only for ordering.
	CreatedAt time.Time `json:"createdAt"`
}

// TransactionDraft is user input for a new transaction before validation.
type TransactionDraft struct {
	Amount   float64           `json:"amount"`
	Category string            `json:"category"`
	Type     TransactionType   `json:"type"`
	Status   TransactionStatus `json:"status"`
	Date     *civil.Date       `json:"date,omitempty"` // required for forecasted entries
}

// ValidatedTransaction is a draft that passed every local invariant.
type ValidatedTransaction struct {
	Amount   decimal.Decimal
	Category string
	Type     TransactionType
	Status   TransactionStatus
	Date     *civil.Date
}

// Validate checks the draft against the transaction invariants. It never
// touches the network; every failure is a *ValidationError.
func (d TransactionDraft) Validate() (ValidatedTransaction, error) {
	amount, err := validateAmount(d.Amount)
	if err != nil {
		return ValidatedTransaction{}, err
	}

	category := strings.TrimSpace(d.Category)
	if category == "" {
		return ValidatedTransaction{}, NewValidationError("category", "category is required")
	}

	if !d.Type.Valid() {
		return ValidatedTransaction{}, NewValidationError("type", "type must be income or expense")
	}

	status := d.Status
	if status == "" {
		status = StatusActual
	}
	if !status.Valid() {
		return ValidatedTransaction{}, NewValidationError("status", "status must be actual or forecasted")
	}

	v := ValidatedTransaction{
		Amount:   amount,
		Category: category,
		Type:     d.Type,
		Status:   status,
	}

	if status == StatusForecasted {
		if d.Date == nil || !d.Date.IsValid() {
			return ValidatedTransaction{}, NewValidationError("date", "forecasted transactions need a date")
		}
		date := *d.Date
		v.Date = &date
	}

	return v, nil
}

// Midday returns noon of date in loc. Chosen calendar days are stored at
// midday so that timezone shifts never move them across a day boundary.
func Midday(date civil.Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(date.Year, date.Month, date.Day, 12, 0, 0, 0, loc)
}

func validateAmount(amount float64) (decimal.Decimal, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return decimal.Zero, NewValidationError("amount", "amount must be a finite number")
	}
	if amount <= 0 {
		return decimal.Zero, NewValidationError("amount", "amount must be greater than zero")
	}
	return decimal.NewFromFloat(amount), nil
}
