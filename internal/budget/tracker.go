// Package budget implements the summary-driven tracker: a list of dated
// items, a running summary document and an on-demand forecast.
package budget

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/docstore"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/forecast"
	"github.com/dvloznov/budget-tracker/internal/identity"
	"github.com/dvloznov/budget-tracker/internal/metrics"
	"github.com/dvloznov/budget-tracker/internal/watch"
)

const (
	ItemsCollection   = "items"
	SummaryCollection = "budget"
	SummaryDocID      = "summary"
)

var (
	// ErrSummaryDiverged marks an item that was stored while the summary
	// update that should accompany it failed.
	ErrSummaryDiverged = errors.New("budget summary no longer matches items")

	// ErrForecastInProgress is returned when a forecast is requested while
	// another one is running.
	ErrForecastInProgress = errors.New("a forecast is already being generated")
)

// View is what the presentation layer renders.
type View struct {
	Items        []domain.Item           `json:"items"`
	Summary      domain.BudgetSummary    `json:"summary"`
	Forecasts    []domain.ForecastRecord `json:"forecasts"`
	ForecastBusy bool                    `json:"forecastBusy"`
	Busy         bool                    `json:"busy"`
	Version      uint64                  `json:"version"`
	Error        string                  `json:"error,omitempty"`
}

// Tracker is the store adapter for the item/summary layout.
type Tracker struct {
	store      docstore.Store
	namespace  string
	forecaster forecast.Forecaster
	logger     zerolog.Logger

	mu         sync.RWMutex
	uid        string
	subs       []docstore.Subscription
	generation uint64
	items      []domain.Item
	summary    domain.BudgetSummary
	hasSummary bool
	forecasts  []domain.ForecastRecord
	version    uint64
	listenErr  string

	busy         atomic.Int32
	forecastBusy atomic.Bool
	watchers     watch.Set[View]
}

// New creates a Tracker. forecaster may be nil when forecasting is disabled.
func New(store docstore.Store, namespace string, forecaster forecast.Forecaster, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:      store,
		namespace:  namespace,
		forecaster: forecaster,
		logger:     logger.With().Str("component", "budget").Logger(),
	}
}

// Bind subscribes to id's items and summary, replacing any earlier binding.
// Forecasts belong to the previous user and are dropped.
func (t *Tracker) Bind(ctx context.Context, id *identity.Identity) error {
	t.mu.Lock()
	for _, s := range t.subs {
		s.Stop()
	}
	t.subs = nil
	t.generation++
	gen := t.generation
	t.items = nil
	t.summary = domain.BudgetSummary{}
	t.hasSummary = false
	t.forecasts = nil
	t.listenErr = ""
	t.version++
	t.uid = ""
	if id != nil {
		t.uid = id.UID
	}
	t.mu.Unlock()

	t.emit()

	if id == nil {
		return nil
	}

	itemsSub, err := t.store.Subscribe(ctx, docstore.Query{Path: t.path(id.UID, ItemsCollection)},
		func(s docstore.Snapshot) { t.applyItems(gen, s) })
	if err != nil {
		return &domain.StoreError{Op: "Bind", Err: err}
	}

	summarySub, err := t.store.Subscribe(ctx, docstore.Query{Path: t.path(id.UID, SummaryCollection)},
		func(s docstore.Snapshot) { t.applySummary(gen, s) })
	if err != nil {
		itemsSub.Stop()
		return &domain.StoreError{Op: "Bind", Err: err}
	}

	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		itemsSub.Stop()
		summarySub.Stop()
		return nil
	}
	t.subs = []docstore.Subscription{itemsSub, summarySub}
	t.mu.Unlock()

	t.logger.Debug().Str("uid", id.UID).Msg("Subscribed to budget")
	return nil
}

func (t *Tracker) applyItems(gen uint64, s docstore.Snapshot) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	if s.Err != nil {
		t.failLocked(s.Err)
		return
	}

	items := make([]domain.Item, 0, len(s.Documents))
	for _, d := range s.Documents {
		items = append(items, decodeItem(d))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})

	t.items = items
	if !t.hasSummary {
		t.summary = metrics.ItemTotals(items)
	}
	t.version++
	t.mu.Unlock()

	t.emit()
}

func (t *Tracker) applySummary(gen uint64, s docstore.Snapshot) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	if s.Err != nil {
		t.failLocked(s.Err)
		return
	}

	// Without a summary document the totals are derived from the items.
	t.hasSummary = false
	t.summary = metrics.ItemTotals(t.items)
	for _, d := range s.Documents {
		if d.ID == SummaryDocID {
			t.summary = decodeSummary(d.Data)
			t.hasSummary = true
			break
		}
	}

	t.version++
	t.mu.Unlock()

	t.emit()
}

// failLocked records a subscription error. It releases t.mu.
func (t *Tracker) failLocked(err error) {
	t.listenErr = err.Error()
	t.mu.Unlock()

	t.logger.Error().Err(err).Msg("Budget subscription failed")
	t.emit()
}

// AddItem validates draft and stores it together with the updated summary.
// Stores that support transactions commit both writes atomically. Otherwise
// the item is written first; if the summary write then fails, the item id is
// returned with an error wrapping ErrSummaryDiverged.
func (t *Tracker) AddItem(ctx context.Context, draft domain.ItemDraft) (string, error) {
	v, err := draft.Validate()
	if err != nil {
		return "", err
	}

	t.mu.RLock()
	uid := t.uid
	mirrored := t.summary
	t.mu.RUnlock()
	if uid == "" {
		return "", &domain.AuthError{Op: "AddItem", Message: "not signed in"}
	}

	t.busy.Add(1)
	defer t.busy.Add(-1)

	itemsPath := t.path(uid, ItemsCollection)
	summaryPath := t.path(uid, SummaryCollection)
	data := encodeItem(v)

	if tr, ok := t.store.(docstore.Transactor); ok {
		var id string
		err := tr.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			current := domain.BudgetSummary{}
			doc, err := tx.Get(summaryPath, SummaryDocID)
			switch {
			case err == nil:
				current = decodeSummary(doc.Data)
			case !errors.Is(err, docstore.ErrNotFound):
				return err
			}

			id, err = tx.Insert(itemsPath, data)
			if err != nil {
				return err
			}
			return tx.SetMerge(summaryPath, SummaryDocID, encodeSummary(current.Apply(v.Type, v.Amount)))
		})
		if err != nil {
			t.logger.Error().Err(err).Msg("Failed to add item")
			return "", &domain.StoreError{Op: "AddItem", Err: err}
		}

		t.logger.Info().Str("item_id", id).Msg("Item added")
		return id, nil
	}

	id, err := t.store.Insert(ctx, itemsPath, data)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to add item")
		return "", &domain.StoreError{Op: "AddItem", Err: err}
	}

	next := mirrored.Apply(v.Type, v.Amount)
	if err := t.store.SetMerge(ctx, summaryPath, SummaryDocID, encodeSummary(next)); err != nil {
		t.logger.Error().
			Err(err).
			Str("item_id", id).
			Msg("Item stored but summary update failed")
		return id, &domain.StoreError{Op: "AddItem", Err: fmt.Errorf("%w: %w", ErrSummaryDiverged, err)}
	}

	t.logger.Info().Str("item_id", id).Msg("Item added")
	return id, nil
}

// GenerateForecast sends the current item history to the forecaster. On
// success the forecast list is replaced; on failure it is left as it was.
func (t *Tracker) GenerateForecast(ctx context.Context) ([]domain.ForecastRecord, error) {
	if t.forecaster == nil {
		return nil, &domain.ForecastError{Reason: "forecasting is not configured"}
	}
	if !t.forecastBusy.CompareAndSwap(false, true) {
		return nil, ErrForecastInProgress
	}
	t.emit()
	defer func() {
		t.forecastBusy.Store(false)
		t.emit()
	}()

	t.mu.RLock()
	gen := t.generation
	items := append([]domain.Item(nil), t.items...)
	t.mu.RUnlock()

	records, err := t.forecaster.Generate(ctx, items)
	if err != nil {
		t.logger.Error().Err(err).Int("items", len(items)).Msg("Forecast failed")
		var fErr *domain.ForecastError
		if !errors.As(err, &fErr) {
			err = &domain.ForecastError{Reason: "provider call failed", Err: err}
		}
		return nil, err
	}

	t.mu.Lock()
	if gen == t.generation {
		t.forecasts = append([]domain.ForecastRecord(nil), records...)
		t.version++
	}
	t.mu.Unlock()

	t.logger.Info().Int("months", len(records)).Msg("Forecast generated")
	return records, nil
}

// View returns a copy of the current state.
func (t *Tracker) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	items := append([]domain.Item{}, t.items...)
	forecasts := append([]domain.ForecastRecord{}, t.forecasts...)

	return View{
		Items:        items,
		Summary:      t.summary,
		Forecasts:    forecasts,
		ForecastBusy: t.forecastBusy.Load(),
		Busy:         t.busy.Load() > 0,
		Version:      t.version,
		Error:        t.listenErr,
	}
}

// Watch registers fn to receive the view after every change.
func (t *Tracker) Watch(fn func(View)) func() {
	return t.watchers.Add(fn)
}

// Close stops the live subscriptions.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	for _, s := range t.subs {
		s.Stop()
	}
	t.subs = nil
}

func (t *Tracker) path(uid, name string) string {
	return docstore.UserCollection(t.namespace, uid, name)
}

func (t *Tracker) emit() {
	if t.watchers.Len() == 0 {
		return
	}
	t.watchers.Emit(t.View())
}
