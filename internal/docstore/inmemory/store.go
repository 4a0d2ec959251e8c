package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/budget-tracker/internal/docstore"
)

// Store is an in-memory implementation of docstore.Store and docstore.Transactor.
// It is safe for concurrent use. Data is lost on restart.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*entry
	seq         uint64

	listenersMu sync.Mutex
	listeners   map[uint64]*listener
	nextHandle  uint64

	now func() time.Time
}

type entry struct {
	data map[string]interface{}
	seq  uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]*entry),
		listeners:   make(map[uint64]*listener),
		now:         time.Now,
	}
}

// WithClock replaces the clock used for server timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Subscribe implements docstore.Store. The current result set is delivered
// right away, then again after every write to q.Path.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query, fn docstore.Listener) (docstore.Subscription, error) {
	if q.Path == "" {
		return nil, fmt.Errorf("Subscribe: empty collection path")
	}

	l := newListener(q, fn)

	s.listenersMu.Lock()
	s.nextHandle++
	l.handle = s.nextHandle
	s.listeners[l.handle] = l
	s.listenersMu.Unlock()

	l.stopHook = func() {
		s.listenersMu.Lock()
		delete(s.listeners, l.handle)
		s.listenersMu.Unlock()
	}

	s.mu.RLock()
	l.push(s.snapshotLocked(q))
	s.mu.RUnlock()

	go l.run()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				l.Stop()
			case <-l.done:
			}
		}()
	}

	return l, nil
}

// Insert implements docstore.Store.
func (s *Store) Insert(ctx context.Context, path string, data map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	id := uuid.New().String()
	s.putLocked(path, id, data, false)
	s.mu.Unlock()

	s.notify(path)
	return id, nil
}

// Delete implements docstore.Store. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, path, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if coll, ok := s.collections[path]; ok {
		delete(coll, id)
	}
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// SetMerge implements docstore.Store. Fields in data overwrite existing ones;
// other fields are kept. A missing document is created.
func (s *Store) SetMerge(ctx context.Context, path, id string, data map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("SetMerge: empty document id")
	}

	s.mu.Lock()
	s.putLocked(path, id, data, true)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// Get returns a copy of one document.
func (s *Store) Get(path, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(path, id)
}

// Count returns the number of documents under path.
func (s *Store) Count(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[path])
}

// RunTransaction implements docstore.Transactor. fn runs with the store
// locked; its writes are applied together only when it returns nil. fn must
// not call other Store methods.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	t := &tx{store: s}
	if err := fn(ctx, t); err != nil {
		s.mu.Unlock()
		return err
	}

	touched := make(map[string]bool)
	for _, w := range t.writes {
		s.putLocked(w.path, w.id, w.data, w.merge)
		touched[w.path] = true
	}
	s.mu.Unlock()

	for path := range touched {
		s.notify(path)
	}
	return nil
}

func (s *Store) putLocked(path, id string, data map[string]interface{}, merge bool) {
	coll, ok := s.collections[path]
	if !ok {
		coll = make(map[string]*entry)
		s.collections[path] = coll
	}

	resolved := s.resolve(data)
	existing, ok := coll[id]
	if ok && merge {
		for k, v := range resolved {
			existing.data[k] = v
		}
		return
	}

	s.seq++
	coll[id] = &entry{data: resolved, seq: s.seq}
}

func (s *Store) getLocked(path, id string) (docstore.Document, error) {
	e, ok := s.collections[path][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docstore.Document{ID: id, Data: copyData(e.data)}, nil
}

// resolve copies data, replacing server timestamp sentinels with the store clock.
func (s *Store) resolve(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	now := s.now()
	for k, v := range data {
		if docstore.IsServerTimestamp(v) {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

func (s *Store) notify(path string) {
	s.listenersMu.Lock()
	var targets []*listener
	for _, l := range s.listeners {
		if l.query.Path == path {
			targets = append(targets, l)
		}
	}
	s.listenersMu.Unlock()

	if len(targets) == 0 {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range targets {
		l.push(s.snapshotLocked(l.query))
	}
}

func (s *Store) snapshotLocked(q docstore.Query) docstore.Snapshot {
	coll := s.collections[q.Path]

	type row struct {
		doc docstore.Document
		seq uint64
	}
	rows := make([]row, 0, len(coll))
	for id, e := range coll {
		rows = append(rows, row{doc: docstore.Document{ID: id, Data: copyData(e.data)}, seq: e.seq})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(rows[i].doc.Data[q.OrderBy], rows[j].doc.Data[q.OrderBy])
			if c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		if q.Descending {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].seq < rows[j].seq
	})

	docs := make([]docstore.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.doc
	}

	return docstore.Snapshot{Documents: docs, ReadTime: s.now()}
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 1
		}
		return av.Compare(bv)
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 1
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv, ok := b.(string)
		if !ok {
			return 1
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	return 0
}

func copyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Ensure Store implements the docstore interfaces.
var _ docstore.Store = (*Store)(nil)
var _ docstore.Transactor = (*Store)(nil)
