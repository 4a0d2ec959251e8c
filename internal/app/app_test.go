package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/docstore/inmemory"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/identity/local"
)

var testNow = time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)

type stubForecaster struct {
	mock.Mock
}

func (s *stubForecaster) Generate(ctx context.Context, items []domain.Item) ([]domain.ForecastRecord, error) {
	args := s.Called(ctx, items)
	records, _ := args.Get(0).([]domain.ForecastRecord)
	return records, args.Error(1)
}

func newTestApp(t *testing.T, variant config.Variant, f *stubForecaster) *App {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := inmemory.NewStore().WithClock(func() time.Time { return testNow })
	opts := Options{
		Variant:     variant,
		Namespace:   "artifacts/test-app",
		Location:    time.UTC,
		CORSOrigins: []string{"*"},
		Now:         func() time.Time { return testNow },
	}

	var a *App
	if f != nil {
		a = New(ctx, opts, store, local.New(zerolog.Nop()), f, zerolog.Nop())
	} else {
		a = New(ctx, opts, store, local.New(zerolog.Nop()), nil, zerolog.Nop())
	}
	t.Cleanup(a.Close)

	a.Start(ctx)
	require.Eventually(t, a.Sessions.Ready, time.Second, 5*time.Millisecond)
	return a
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func waitForCount(t *testing.T, h http.Handler, path string, n int) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.Eventually(t, func() bool {
		_, body = doJSON(t, h, http.MethodGet, path, nil)
		count, ok := body["count"].(float64)
		return ok && int(count) == n
	}, time.Second, 5*time.Millisecond)
	return body
}

func TestApp_Health(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)

	rec, body := doJSON(t, a.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestApp_StartSignsInAnonymously(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)

	rec, body := doJSON(t, a.Handler(), http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ready"])

	id, ok := body["identity"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, id["anonymous"])
	assert.NotEmpty(t, id["uid"])
}

func TestApp_LedgerCreateAndList(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)
	h := a.Handler()

	rec, body := doJSON(t, h, http.MethodPost, "/api/transactions", map[string]interface{}{
		"amount":   120.5,
		"category": "Salary",
		"type":     "income",
		"status":   "actual",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["id"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/transactions", map[string]interface{}{
		"amount":   20,
		"category": "Rent",
		"type":     "expense",
		"status":   "forecasted",
		"date":     "2026-10-25",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	list := waitForCount(t, h, "/api/transactions", 2)
	metrics := list["metrics"].(map[string]interface{})
	summary := metrics["summary"].(map[string]interface{})
	assert.Equal(t, "120.5", summary["totalIncome"])
	assert.Equal(t, "0", summary["totalExpenses"], "forecasted entries stay out of the totals")

	rec, body = doJSON(t, h, http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	forecastFlow := body["forecastCashFlow"].(map[string]interface{})
	assert.Equal(t, "20", forecastFlow["expenses"])
}

func TestApp_LedgerRejectsInvalidDraft(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)

	rec, _ := doJSON(t, a.Handler(), http.MethodPost, "/api/transactions", map[string]interface{}{
		"amount":   -1,
		"category": "Food",
		"type":     "expense",
		"status":   "actual",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApp_LedgerDeleteNeedsConfirmation(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)
	h := a.Handler()

	_, body := doJSON(t, h, http.MethodPost, "/api/transactions", map[string]interface{}{
		"amount":   5,
		"category": "Coffee",
		"type":     "expense",
		"status":   "actual",
	})
	id := body["id"].(string)
	waitForCount(t, h, "/api/transactions", 1)

	rec, _ := doJSON(t, h, http.MethodDelete, "/api/transactions/"+id, nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec, body = doJSON(t, h, http.MethodDelete, "/api/transactions/"+id+"?confirm=no", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["deleted"])
	waitForCount(t, h, "/api/transactions", 1)

	rec, body = doJSON(t, h, http.MethodDelete, "/api/transactions/"+id+"?confirm=yes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["deleted"])
	waitForCount(t, h, "/api/transactions", 0)
}

func TestApp_LedgerMode(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)
	h := a.Handler()

	rec, body := doJSON(t, h, http.MethodPut, "/api/mode", map[string]string{"mode": "forecasted"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "forecasted", body["mode"])

	rec, _ = doJSON(t, h, http.MethodPut, "/api/mode", map[string]string{"mode": "someday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApp_RegisterSwitchesUserAndLogoutClears(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)
	h := a.Handler()

	_, _ = doJSON(t, h, http.MethodPost, "/api/transactions", map[string]interface{}{
		"amount": 5, "category": "Coffee", "type": "expense", "status": "actual",
	})
	waitForCount(t, h, "/api/transactions", 1)

	rec, body := doJSON(t, h, http.MethodPost, "/api/session/register", map[string]string{
		"email": "ana@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := body["identity"].(map[string]interface{})
	assert.Equal(t, "ana@example.com", id["email"])

	// The new account starts with an empty collection.
	waitForCount(t, h, "/api/transactions", 0)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/session/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, a.Sessions.Current())

	rec, _ = doJSON(t, h, http.MethodPost, "/api/transactions", map[string]interface{}{
		"amount": 5, "category": "Coffee", "type": "expense", "status": "actual",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/session/login", map[string]string{
		"email": "ana@example.com", "password": "wrong-one",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApp_BudgetRoutesOnlyInBudgetVariant(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)

	rec, _ := doJSON(t, a.Handler(), http.MethodGet, "/api/items", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	b := newTestApp(t, config.VariantBudget, &stubForecaster{})
	rec, _ = doJSON(t, b.Handler(), http.MethodGet, "/api/transactions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = doJSON(t, b.Handler(), http.MethodPost, "/api/session/login", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApp_BudgetItemsAndForecast(t *testing.T) {
	f := &stubForecaster{}
	a := newTestApp(t, config.VariantBudget, f)
	h := a.Handler()

	rec, body := doJSON(t, h, http.MethodPost, "/api/items", map[string]interface{}{
		"amount":      1000,
		"description": "Salary",
		"type":        "income",
		"date":        "2026-10-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["id"])

	list := waitForCount(t, h, "/api/items", 1)
	require.Eventually(t, func() bool {
		_, list = doJSON(t, h, http.MethodGet, "/api/items", nil)
		summary, ok := list["summary"].(map[string]interface{})
		return ok && summary["income"] == "1000"
	}, time.Second, 5*time.Millisecond)

	records := []domain.ForecastRecord{
		{Month: "November 2026", PredictedBudget: 900, PredictedIncome: 1000, PredictedExpense: 100},
	}
	f.On("Generate", mock.Anything, mock.MatchedBy(func(items []domain.Item) bool {
		return len(items) == 1 && items[0].Description == "Salary"
	})).Return(records, nil).Once()

	rec, body = doJSON(t, h, http.MethodPost, "/api/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["forecasts"], 1)

	rec, body = doJSON(t, h, http.MethodGet, "/api/forecast", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["busy"])
	assert.Len(t, body["forecasts"], 1)
	f.AssertExpectations(t)
}

func TestApp_BudgetForecastFailureIsBadGateway(t *testing.T) {
	f := &stubForecaster{}
	a := newTestApp(t, config.VariantBudget, f)

	f.On("Generate", mock.Anything, mock.Anything).
		Return(nil, &domain.ForecastError{Reason: "model returned no text"}).Once()

	rec, _ := doJSON(t, a.Handler(), http.MethodPost, "/api/forecast", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestApp_StreamPushesSessionAndView(t *testing.T) {
	a := newTestApp(t, config.VariantLedger, nil)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/stream", nil)
	require.NoError(t, err)
	defer c.CloseNow()

	seen := map[string]bool{}
	for !(seen["session"] && seen["ledger"]) {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, wsjson.Read(ctx, c, &msg))
		seen[msg.Type] = true
	}

	_, err = a.Ledger.Create(ctx, domain.TransactionDraft{
		Amount: 9, Category: "Books", Type: domain.TypeExpense, Status: domain.StatusActual,
	})
	require.NoError(t, err)

	for {
		var msg struct {
			Type string `json:"type"`
			Data struct {
				Transactions []json.RawMessage `json:"transactions"`
			} `json:"data"`
		}
		require.NoError(t, wsjson.Read(ctx, c, &msg))
		if msg.Type == "ledger" && len(msg.Data.Transactions) == 1 {
			break
		}
	}

	c.Close(websocket.StatusNormalClosure, "")
}
