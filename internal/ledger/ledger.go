// Package ledger mirrors the signed-in user's transactions collection and
// derives the dashboard metrics from it.
package ledger

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/docstore"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/identity"
	"github.com/dvloznov/budget-tracker/internal/metrics"
	"github.com/dvloznov/budget-tracker/internal/watch"
)

// CollectionName is the per-user collection holding transactions.
const CollectionName = "transactions"

// EntryMode selects which kind of transaction the entry form creates.
type EntryMode string

const (
	ModeActual     EntryMode = "actual"
	ModeForecasted EntryMode = "forecasted"
)

// Valid reports whether m is a known mode.
func (m EntryMode) Valid() bool {
	return m == ModeActual || m == ModeForecasted
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, id string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, id string) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

// View is what the presentation layer renders.
type View struct {
	Transactions []domain.Transaction `json:"transactions"`
	Report       metrics.Report       `json:"metrics"`
	Version      uint64               `json:"version"`
	Mode         EntryMode            `json:"mode"`
	Busy         bool                 `json:"busy"`
	Error        string               `json:"error,omitempty"`
}

// Ledger is the transaction store adapter. The in-memory list is replaced
// wholesale on every snapshot and is never edited optimistically.
type Ledger struct {
	store     docstore.Store
	namespace string
	engine    *metrics.Engine
	logger    zerolog.Logger

	mu         sync.RWMutex
	uid        string
	sub        docstore.Subscription
	generation uint64
	txs        []domain.Transaction
	version    uint64
	mode       EntryMode
	listenErr  string

	busy     atomic.Int32
	watchers watch.Set[View]
}

// New creates a Ledger writing under namespace.
func New(store docstore.Store, namespace string, engine *metrics.Engine, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		namespace: namespace,
		engine:    engine,
		logger:    logger.With().Str("component", "ledger").Logger(),
		mode:      ModeActual,
	}
}

// Bind points the ledger at id's collection, tearing down any previous
// subscription. A nil id leaves the ledger empty and unsubscribed.
// Snapshots from an earlier binding are discarded even if they arrive late.
func (l *Ledger) Bind(ctx context.Context, id *identity.Identity) error {
	l.mu.Lock()
	if l.sub != nil {
		l.sub.Stop()
		l.sub = nil
	}
	l.generation++
	gen := l.generation
	l.txs = nil
	l.version++
	l.listenErr = ""
	l.uid = ""
	if id != nil {
		l.uid = id.UID
	}
	l.mu.Unlock()

	l.emit()

	if id == nil {
		return nil
	}

	q := docstore.Query{
		Path:       docstore.UserCollection(l.namespace, id.UID, CollectionName),
		OrderBy:    "createdAt",
		Descending: true,
	}
	sub, err := l.store.Subscribe(ctx, q, func(s docstore.Snapshot) { l.apply(gen, s) })
	if err != nil {
		return &domain.StoreError{Op: "Bind", Err: err}
	}

	l.mu.Lock()
	if l.generation != gen {
		l.mu.Unlock()
		sub.Stop()
		return nil
	}
	l.sub = sub
	l.mu.Unlock()

	l.logger.Debug().Str("uid", id.UID).Msg("Subscribed to transactions")
	return nil
}

func (l *Ledger) apply(gen uint64, s docstore.Snapshot) {
	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		return
	}

	if s.Err != nil {
		l.listenErr = s.Err.Error()
		l.mu.Unlock()
		l.logger.Error().Err(s.Err).Msg("Transactions subscription failed")
		l.emit()
		return
	}

	txs := make([]domain.Transaction, 0, len(s.Documents))
	for _, d := range s.Documents {
		txs = append(txs, decodeTransaction(d))
	}
	l.txs = txs
	l.version++
	l.listenErr = ""
	l.mu.Unlock()

	l.emit()
}

// Create validates draft locally and inserts it. Actual entries take both
// dates from the store clock; forecasted ones are dated at midday of the
// chosen day.
func (l *Ledger) Create(ctx context.Context, draft domain.TransactionDraft) (string, error) {
	v, err := draft.Validate()
	if err != nil {
		return "", err
	}

	uid := l.boundUID()
	if uid == "" {
		return "", &domain.AuthError{Op: "Create", Message: "not signed in"}
	}

	l.busy.Add(1)
	defer l.busy.Add(-1)

	data := map[string]interface{}{
		"amount":    docstore.Float(v.Amount),
		"category":  v.Category,
		"type":      string(v.Type),
		"status":    string(v.Status),
		"createdAt": docstore.ServerTimestamp,
		"date":      docstore.ServerTimestamp,
	}
	if v.Status == domain.StatusForecasted {
		data["date"] = domain.Midday(*v.Date, l.engine.Location())
	}

	id, err := l.store.Insert(ctx, docstore.UserCollection(l.namespace, uid, CollectionName), data)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to create transaction")
		return "", &domain.StoreError{Op: "Create", Err: err}
	}

	l.logger.Info().
		Str("transaction_id", id).
		Str("status", string(v.Status)).
		Msg("Transaction created")
	return id, nil
}

// Delete removes id after c approves it. It reports whether a delete was
// sent. The mirror changes only when the next snapshot arrives.
func (l *Ledger) Delete(ctx context.Context, id string, c Confirmer) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, domain.NewValidationError("id", "id is required")
	}

	uid := l.boundUID()
	if uid == "" {
		return false, &domain.AuthError{Op: "Delete", Message: "not signed in"}
	}

	ok, err := c.Confirm(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	l.busy.Add(1)
	defer l.busy.Add(-1)

	if err := l.store.Delete(ctx, docstore.UserCollection(l.namespace, uid, CollectionName), id); err != nil {
		l.logger.Error().Err(err).Str("transaction_id", id).Msg("Failed to delete transaction")
		return false, &domain.StoreError{Op: "Delete", Err: err}
	}

	l.logger.Info().Str("transaction_id", id).Msg("Transaction deleted")
	return true, nil
}

// SetMode changes the entry mode.
func (l *Ledger) SetMode(m EntryMode) error {
	if !m.Valid() {
		return domain.NewValidationError("mode", "mode must be actual or forecasted")
	}

	l.mu.Lock()
	l.mode = m
	l.mu.Unlock()

	l.emit()
	return nil
}

// Reset clears the mirror and the entry mode. It runs on logout.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.txs = nil
	l.version++
	l.mode = ModeActual
	l.listenErr = ""
	l.mu.Unlock()

	l.emit()
}

// View returns the current list together with its metrics.
func (l *Ledger) View() View {
	l.mu.RLock()
	txs := append([]domain.Transaction(nil), l.txs...)
	version := l.version
	mode := l.mode
	listenErr := l.listenErr
	l.mu.RUnlock()

	if txs == nil {
		txs = []domain.Transaction{}
	}

	return View{
		Transactions: txs,
		Report:       l.engine.Report(version, txs),
		Version:      version,
		Mode:         mode,
		Busy:         l.busy.Load() > 0,
		Error:        listenErr,
	}
}

// Watch registers fn to receive the view after every change.
func (l *Ledger) Watch(fn func(View)) func() {
	return l.watchers.Add(fn)
}

// Close stops the live subscription.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	if l.sub != nil {
		l.sub.Stop()
		l.sub = nil
	}
}

func (l *Ledger) boundUID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.uid
}

func (l *Ledger) emit() {
	if l.watchers.Len() == 0 {
		return
	}
	l.watchers.Emit(l.View())
}

// decodeTransaction reads one stored record. Records written before status
// existed count as actual.
func decodeTransaction(d docstore.Document) domain.Transaction {
	status := domain.TransactionStatus(docstore.String(d.Data, "status"))
	if status == "" {
		status = domain.StatusActual
	}

	created := docstore.Time(d.Data, "createdAt")
	date := docstore.Time(d.Data, "date")
	if date.IsZero() && status == domain.StatusActual {
		date = created
	}

	return domain.Transaction{
		ID:            d.ID,
		Amount:        docstore.Decimal(d.Data, "amount"),
		Category:      docstore.String(d.Data, "category"),
		Type:          domain.TransactionType(docstore.String(d.Data, "type")),
		Status:        status,
		EffectiveDate: date,
		CreatedAt:     created,
	}
}
