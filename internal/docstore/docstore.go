// Package docstore describes the hosted document store the application sits
// on: per-user collections, full-snapshot subscriptions and merge writes.
package docstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Tx.Get for a missing document.
var ErrNotFound = errors.New("docstore: document not found")

type serverTimestamp struct{}

// ServerTimestamp is a field value that the backend replaces with its own
// clock at write time.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v interface{}) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Document is one stored record.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Query selects a collection and an optional ordering.
type Query struct {
	Path       string
	OrderBy    string
	Descending bool
}

// Snapshot is the complete current result set of a query. Err is set when
// the subscription failed; no further snapshots follow an error.
type Snapshot struct {
	Documents []Document
	ReadTime  time.Time
	Err       error
}

// Listener receives snapshots for one subscription.
type Listener func(Snapshot)

// Subscription is a handle on a live query.
type Subscription interface {
	// Stop ends delivery and is idempotent. A callback already running may
	// still finish after Stop returns.
	Stop()
}

// Store is the document/collection store collaborator.
type Store interface {
	Subscribe(ctx context.Context, q Query, fn Listener) (Subscription, error)
	Insert(ctx context.Context, path string, data map[string]interface{}) (string, error)
	Delete(ctx context.Context, path, id string) error
	SetMerge(ctx context.Context, path, id string, data map[string]interface{}) error
}

// Tx is the write surface available inside a transaction. All Gets must
// happen before the first write.
type Tx interface {
	Get(path, id string) (Document, error)
	Insert(path string, data map[string]interface{}) (string, error)
	SetMerge(path, id string, data map[string]interface{}) error
}

// Transactor is implemented by stores that can commit several writes atomically.
type Transactor interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// UserCollection builds "<namespace>/users/<uid>/<name>".
func UserCollection(namespace, uid, name string) string {
	return strings.Trim(namespace, "/") + "/users/" + uid + "/" + name
}
