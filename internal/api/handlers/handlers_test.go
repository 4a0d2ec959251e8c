package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/budget"
	"github.com/dvloznov/budget-tracker/internal/docstore"
	"github.com/dvloznov/budget-tracker/internal/docstore/inmemory"
	"github.com/dvloznov/budget-tracker/internal/identity"
	"github.com/dvloznov/budget-tracker/internal/identity/local"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/session"
)

// syncBuffer is a bytes.Buffer safe for a logger writing from the server
// goroutine while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// summaryFailStore hides the in-memory transactions and fails summary writes.
type summaryFailStore struct {
	docstore.Store
	err error
}

func (s *summaryFailStore) SetMerge(ctx context.Context, path, id string, data map[string]interface{}) error {
	return s.err
}

func TestAddItem_SummaryDivergenceReturnsItemID(t *testing.T) {
	ctx := context.Background()
	store := &summaryFailStore{Store: inmemory.NewStore(), err: errors.New("quota exceeded")}
	tr := budget.New(store, "artifacts/test-app", nil, zerolog.Nop())
	defer tr.Close()
	require.NoError(t, tr.Bind(ctx, &identity.Identity{UID: "u1"}))

	buf := &syncBuffer{}
	h := middleware.RequestID(middleware.Logger(logger.NewWithWriter(buf))(
		http.HandlerFunc(NewBudgetHandler(tr, zerolog.Nop()).AddItem)))

	body := `{"amount":25,"description":"Books","type":"expense","date":"2026-10-18"}`
	req := httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
	assert.Contains(t, resp["error"], "quota exceeded")
	assert.Contains(t, buf.String(), "Summary diverged from items")
	assert.Contains(t, buf.String(), resp["id"])
}

func TestStream_ConnectionLoggerCarriesRequestID(t *testing.T) {
	buf := &syncBuffer{}
	sessions := session.NewManager(local.New(zerolog.Nop()), "", zerolog.Nop())
	stream := NewStreamHandler(sessions, nil, nil, []string{"*"}, logger.NewWithWriter(buf))

	srv := httptest.NewServer(middleware.RequestID(stream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		HTTPHeader: http.Header{"X-Request-ID": []string{"req-42"}},
	})
	require.NoError(t, err)
	defer c.CloseNow()

	var msg StreamMessage
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	assert.Equal(t, "session", msg.Kind)

	require.Eventually(t, func() bool {
		out := buf.String()
		return strings.Contains(out, "Client connected to stream") &&
			strings.Contains(out, `"request_id":"req-42"`)
	}, time.Second, 5*time.Millisecond)

	c.Close(websocket.StatusNormalClosure, "")
}
