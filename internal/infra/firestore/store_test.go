package firestore

import (
	"testing"
	"time"

	fs "cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/budget-tracker/internal/docstore"
)

func TestToFirestore(t *testing.T) {
	ts := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	in := map[string]interface{}{
		"amount":    decimal.RequireFromString("12.34"),
		"category":  "food",
		"date":      ts,
		"createdAt": docstore.ServerTimestamp,
	}

	out := toFirestore(in)

	assert.Equal(t, 12.34, out["amount"])
	assert.Equal(t, "food", out["category"])
	assert.Equal(t, ts, out["date"])
	assert.Equal(t, fs.ServerTimestamp, out["createdAt"])

	// The input map is left untouched.
	assert.Equal(t, docstore.ServerTimestamp, in["createdAt"])
}

func TestSubscriptionStop(t *testing.T) {
	cancelled := false
	sub := &subscription{cancel: func() { cancelled = true }, done: make(chan struct{})}

	assert.False(t, sub.isStopped())
	sub.Stop()
	sub.Stop()
	assert.True(t, sub.isStopped())
	assert.True(t, cancelled)
}
