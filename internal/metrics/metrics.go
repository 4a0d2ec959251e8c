// Package metrics derives totals and windowed cash-flow figures from the
// mirrored transaction list. Everything here is a pure function of its input;
// an empty list yields zeros, never an error.
package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// WindowDays is the length of both the trailing and the forward cash-flow window.
const WindowDays = 30

// Summary holds the all-time totals over actual transactions.
type Summary struct {
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	Balance       decimal.Decimal `json:"balance"`
}

// CashFlow is the income/expense split over a window. From and To are the
// inclusive window bounds used for the calculation.
type CashFlow struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
}

// Report bundles every derived figure for one snapshot.
type Report struct {
	Summary    Summary   `json:"summary"`
	Actual     CashFlow  `json:"actualCashFlow"`
	Forecast   CashFlow  `json:"forecastCashFlow"`
	ComputedAt time.Time `json:"computedAt"`
}

// Totals sums actual income and expenses. Forecasted entries never count.
func Totals(txs []domain.Transaction) Summary {
	var s Summary
	s.TotalIncome = decimal.Zero
	s.TotalExpenses = decimal.Zero

	for _, tx := range txs {
		if tx.Status != domain.StatusActual {
			continue
		}
		switch tx.Type {
		case domain.TypeIncome:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case domain.TypeExpense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
		}
	}

	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	return s
}

// ActualCashFlow sums actual entries dated on or after the start of the day
// WindowDays ago, in loc.
func ActualCashFlow(txs []domain.Transaction, now time.Time, loc *time.Location) CashFlow {
	now = inLocation(now, loc)
	from := StartOfDay(now.AddDate(0, 0, -WindowDays))

	return sumWindow(txs, domain.StatusActual, from, now, func(d time.Time) bool {
		return !d.Before(from)
	})
}

// ForecastCashFlow sums forecasted entries dated between the start of today
// and the end of the day WindowDays from now, both inclusive, in loc.
func ForecastCashFlow(txs []domain.Transaction, now time.Time, loc *time.Location) CashFlow {
	now = inLocation(now, loc)
	from := StartOfDay(now)
	to := EndOfDay(now.AddDate(0, 0, WindowDays))

	return sumWindow(txs, domain.StatusForecasted, from, to, func(d time.Time) bool {
		return !d.Before(from) && !d.After(to)
	})
}

// Compute builds the full report for txs at now.
func Compute(txs []domain.Transaction, now time.Time, loc *time.Location) Report {
	return Report{
		Summary:    Totals(txs),
		Actual:     ActualCashFlow(txs, now, loc),
		Forecast:   ForecastCashFlow(txs, now, loc),
		ComputedAt: now,
	}
}

// ItemTotals derives a budget summary directly from items. It is used when no
// summary document has been written yet.
func ItemTotals(items []domain.Item) domain.BudgetSummary {
	s := domain.BudgetSummary{Budget: decimal.Zero, Income: decimal.Zero, Expense: decimal.Zero}
	for _, it := range items {
		s = s.Apply(it.Type, it.Amount)
	}
	return s
}

// StartOfDay returns midnight at the beginning of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

func sumWindow(txs []domain.Transaction, status domain.TransactionStatus, from, to time.Time, in func(time.Time) bool) CashFlow {
	cf := CashFlow{Income: decimal.Zero, Expenses: decimal.Zero, From: from, To: to}

	for _, tx := range txs {
		if tx.Status != status || tx.EffectiveDate.IsZero() || !in(tx.EffectiveDate) {
			continue
		}
		switch tx.Type {
		case domain.TypeIncome:
			cf.Income = cf.Income.Add(tx.Amount)
		case domain.TypeExpense:
			cf.Expenses = cf.Expenses.Add(tx.Amount)
		}
	}

	cf.Net = cf.Income.Sub(cf.Expenses)
	return cf
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
