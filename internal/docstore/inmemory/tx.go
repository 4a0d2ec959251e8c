package inmemory

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dvloznov/budget-tracker/internal/docstore"
)

type pendingWrite struct {
	path  string
	id    string
	data  map[string]interface{}
	merge bool
}

// tx stages writes until RunTransaction commits them. The store lock is held
// for the whole lifetime of a tx.
type tx struct {
	store  *Store
	writes []pendingWrite
}

func (t *tx) Get(path, id string) (docstore.Document, error) {
	if len(t.writes) > 0 {
		return docstore.Document{}, fmt.Errorf("Get: reads must precede writes in a transaction")
	}
	return t.store.getLocked(path, id)
}

func (t *tx) Insert(path string, data map[string]interface{}) (string, error) {
	id := uuid.New().String()
	t.writes = append(t.writes, pendingWrite{path: path, id: id, data: data})
	return id, nil
}

func (t *tx) SetMerge(path, id string, data map[string]interface{}) error {
	if id == "" {
		return fmt.Errorf("SetMerge: empty document id")
	}
	t.writes = append(t.writes, pendingWrite{path: path, id: id, data: data, merge: true})
	return nil
}

var _ docstore.Tx = (*tx)(nil)
