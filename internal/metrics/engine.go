package metrics

import (
	"sync"
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// Engine memoizes the last Report. A new report is computed only when the
// snapshot version changes or the local calendar day rolls over.
type Engine struct {
	now func() time.Time
	loc *time.Location

	mu      sync.Mutex
	version uint64
	day     time.Time
	report  Report
	valid   bool
}

// NewEngine creates an engine reading the clock from now. A nil now uses time.Now.
func NewEngine(now func() time.Time, loc *time.Location) *Engine {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{now: now, loc: loc}
}

// Report returns the metrics for txs, which must be the list published under version.
func (e *Engine) Report(version uint64, txs []domain.Transaction) Report {
	now := e.now().In(e.loc)
	day := StartOfDay(now)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.valid && e.version == version && e.day.Equal(day) {
		// The trailing window ends at now.
		e.report.Actual.To = now
		e.report.ComputedAt = now
		return e.report
	}

	e.report = Compute(txs, now, e.loc)
	e.version = version
	e.day = day
	e.valid = true
	return e.report
}

// Location returns the zone used for day boundaries.
func (e *Engine) Location() *time.Location {
	return e.loc
}
