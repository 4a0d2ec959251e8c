package forecast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

var testNow = time.Date(2026, time.October, 18, 15, 30, 0, 0, time.UTC)

func testItems() []domain.Item {
	return []domain.Item{
		{Amount: decimal.NewFromInt(2500), Description: "Salary", Type: domain.TypeIncome, Date: civil.Date{Year: 2026, Month: time.October, Day: 1}},
		{Amount: decimal.RequireFromString("85.5"), Description: "Groceries", Type: domain.TypeExpense, Date: civil.Date{Year: 2026, Month: time.October, Day: 3}},
	}
}

func TestBuildPrompt_OneLinePerItem(t *testing.T) {
	p := BuildPrompt(testItems(), testNow)

	assert.Contains(t, p, "- income: 2500.00, Salary, 2026-10-01\n")
	assert.Contains(t, p, "- expense: 85.50, Groceries, 2026-10-03\n")
	assert.Contains(t, p, "Today is 2026-10-18.")
	assert.Contains(t, p, "predictedExpense")
}

func TestBuildPrompt_EmptyHistory(t *testing.T) {
	assert.Contains(t, BuildPrompt(nil, testNow), "(no entries yet)")
}

func TestResponseSchema(t *testing.T) {
	s := ResponseSchema()

	assert.Equal(t, genai.TypeArray, s.Type)
	require.NotNil(t, s.Items)
	assert.ElementsMatch(t, []string{"month", "predictedBudget", "predictedIncome", "predictedExpense"}, s.Items.Required)
	assert.Equal(t, genai.TypeNumber, s.Items.Properties["predictedBudget"].Type)
}

func TestParseForecast(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{"plain array", `[{"month":"2026-11","predictedBudget":100,"predictedIncome":300,"predictedExpense":200}]`, 1, false},
		{"fenced", "```json\n[{\"month\":\"2026-11\",\"predictedBudget\":1,\"predictedIncome\":1,\"predictedExpense\":0}]\n```", 1, false},
		{"chatter around array", "Sure! [{\"month\":\"2026-11\"}] Hope that helps.", 1, false},
		{"empty array", "[]", 0, false},
		{"empty text", "", 0, true},
		{"not json", "the model refused", 0, true},
		{"truncated", `[{"month":"2026-11","predictedBudget":`, 0, true},
		{"missing month", `[{"predictedBudget":1}]`, 0, true},
		{"json null", "null", 0, true},
		{"fenced null", "```json\nnull\n```", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForecast(tt.text)
			if tt.wantErr {
				var fErr *domain.ForecastError
				require.ErrorAs(t, err, &fErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseForecast_Values(t *testing.T) {
	got, err := ParseForecast(`[{"month":"2026-11","predictedBudget":100.5,"predictedIncome":300,"predictedExpense":199.5}]`)
	require.NoError(t, err)

	assert.Equal(t, domain.ForecastRecord{
		Month: "2026-11", PredictedBudget: 100.5, PredictedIncome: 300, PredictedExpense: 199.5,
	}, got[0])
}

// fakeGemini answers generateContent calls with text.
func fakeGemini(t *testing.T, text string, status int) (*httptest.Server, *[]map[string]interface{}) {
	t.Helper()
	var bodies []map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []interface{}{
				map[string]interface{}{
					"content": map[string]interface{}{
						"role":  "model",
						"parts": []interface{}{map[string]interface{}{"text": text}},
					},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func newTestForecaster(t *testing.T, srv *httptest.Server) *GeminiForecaster {
	t.Helper()
	f, err := NewGeminiForecaster(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Now:        func() time.Time { return testNow },
	}, zerolog.Nop())
	require.NoError(t, err)
	return f
}

func TestGeminiForecaster_Generate(t *testing.T) {
	srv, bodies := fakeGemini(t, `[{"month":"2026-11","predictedBudget":10,"predictedIncome":20,"predictedExpense":10}]`, http.StatusOK)
	f := newTestForecaster(t, srv)

	records, err := f.Generate(context.Background(), testItems())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2026-11", records[0].Month)

	require.Len(t, *bodies, 1)
	cfg, ok := (*bodies)[0]["generationConfig"].(map[string]interface{})
	require.True(t, ok, "request carries a generation config")
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.NotNil(t, cfg["responseSchema"])
}

func TestGeminiForecaster_InvalidJSONIsForecastError(t *testing.T) {
	srv, _ := fakeGemini(t, "I cannot help with that", http.StatusOK)
	f := newTestForecaster(t, srv)

	_, err := f.Generate(context.Background(), testItems())
	var fErr *domain.ForecastError
	assert.ErrorAs(t, err, &fErr)
}

func TestGeminiForecaster_ProviderFailureIsForecastError(t *testing.T) {
	srv, _ := fakeGemini(t, "", http.StatusInternalServerError)
	f := newTestForecaster(t, srv)

	_, err := f.Generate(context.Background(), testItems())
	var fErr *domain.ForecastError
	assert.ErrorAs(t, err, &fErr)
}

func TestNewGeminiForecaster_RequiresKey(t *testing.T) {
	_, err := NewGeminiForecaster(context.Background(), GeminiConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
