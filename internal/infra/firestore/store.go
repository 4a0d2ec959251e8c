// Package firestore backs docstore.Store with Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"sync"

	fs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dvloznov/budget-tracker/internal/docstore"
)

// Store is a docstore.Store and docstore.Transactor over a Firestore client.
type Store struct {
	client *fs.Client
	logger zerolog.Logger
}

// New wraps an existing Firestore client.
func New(client *fs.Client, logger zerolog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// NewFromApp opens the Firestore client of a Firebase app.
func NewFromApp(ctx context.Context, app *firebase.App, logger zerolog.Logger) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewFromApp: opening firestore client: %w", err)
	}
	return New(client, logger), nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Subscribe implements docstore.Store. Each snapshot carries the whole result
// set. A listen error is delivered once in Snapshot.Err and ends the stream.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query, fn docstore.Listener) (docstore.Subscription, error) {
	if q.Path == "" {
		return nil, fmt.Errorf("Subscribe: empty collection path")
	}

	query := s.client.Collection(q.Path).Query
	if q.OrderBy != "" {
		dir := fs.Asc
		if q.Descending {
			dir = fs.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	it := query.Snapshots(ctx)

	log := s.logger.With().Str("collection", q.Path).Logger()

	go func() {
		defer close(sub.done)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if sub.isStopped() {
				return
			}
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				log.Error().Err(err).Msg("Snapshot listener failed")
				fn(docstore.Snapshot{Err: fmt.Errorf("Subscribe: %w", err)})
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Error().Err(err).Msg("Reading snapshot documents failed")
				fn(docstore.Snapshot{Err: fmt.Errorf("Subscribe: reading documents: %w", err)})
				return
			}

			out := make([]docstore.Document, 0, len(docs))
			for _, d := range docs {
				out = append(out, docstore.Document{ID: d.Ref.ID, Data: d.Data()})
			}

			if sub.isStopped() {
				return
			}
			fn(docstore.Snapshot{Documents: out, ReadTime: snap.ReadTime})
		}
	}()

	return sub, nil
}

// Insert implements docstore.Store.
func (s *Store) Insert(ctx context.Context, path string, data map[string]interface{}) (string, error) {
	ref, _, err := s.client.Collection(path).Add(ctx, toFirestore(data))
	if err != nil {
		return "", fmt.Errorf("Insert: adding document to %s: %w", path, err)
	}
	return ref.ID, nil
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, path, id string) error {
	if _, err := s.client.Collection(path).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("Delete: removing %s/%s: %w", path, id, err)
	}
	return nil
}

// SetMerge implements docstore.Store.
func (s *Store) SetMerge(ctx context.Context, path, id string, data map[string]interface{}) error {
	if id == "" {
		return fmt.Errorf("SetMerge: empty document id")
	}
	if _, err := s.client.Collection(path).Doc(id).Set(ctx, toFirestore(data), fs.MergeAll); err != nil {
		return fmt.Errorf("SetMerge: writing %s/%s: %w", path, id, err)
	}
	return nil
}

// RunTransaction implements docstore.Transactor. Firestore may call fn more
// than once when the transaction contends with another writer.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *fs.Transaction) error {
		return fn(ctx, &tx{client: s.client, t: t})
	})
	if err != nil {
		return fmt.Errorf("RunTransaction: %w", err)
	}
	return nil
}

type subscription struct {
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *subscription) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

func (s *subscription) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type tx struct {
	client *fs.Client
	t      *fs.Transaction
}

func (x *tx) Get(path, id string) (docstore.Document, error) {
	snap, err := x.t.Get(x.client.Collection(path).Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, fmt.Errorf("Get: reading %s/%s: %w", path, id, err)
	}
	return docstore.Document{ID: id, Data: snap.Data()}, nil
}

func (x *tx) Insert(path string, data map[string]interface{}) (string, error) {
	ref := x.client.Collection(path).NewDoc()
	if err := x.t.Create(ref, toFirestore(data)); err != nil {
		return "", fmt.Errorf("Insert: staging %s: %w", path, err)
	}
	return ref.ID, nil
}

func (x *tx) SetMerge(path, id string, data map[string]interface{}) error {
	if err := x.t.Set(x.client.Collection(path).Doc(id), toFirestore(data), fs.MergeAll); err != nil {
		return fmt.Errorf("SetMerge: staging %s/%s: %w", path, id, err)
	}
	return nil
}

// toFirestore maps docstore field values onto types the Firestore client accepts.
func toFirestore(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case decimal.Decimal:
			out[k] = val.InexactFloat64()
		default:
			if docstore.IsServerTimestamp(v) {
				out[k] = fs.ServerTimestamp
				continue
			}
			out[k] = v
		}
	}
	return out
}

var (
	_ docstore.Store      = (*Store)(nil)
	_ docstore.Transactor = (*Store)(nil)
	_ docstore.Tx         = (*tx)(nil)
)
