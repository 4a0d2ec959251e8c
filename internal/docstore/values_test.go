package docstore

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDecimal(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"float", 12.5, "12.5"},
		{"int", 7, "7"},
		{"int64", int64(9), "9"},
		{"numeric string", " 3.25 ", "3.25"},
		{"garbage string", "abc", "0"},
		{"missing", nil, "0"},
		{"bool", true, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := map[string]interface{}{}
			if tt.value != nil {
				data["amount"] = tt.value
			}
			got := Decimal(data, "amount")
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestTime(t *testing.T) {
	ts := time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, ts, Time(map[string]interface{}{"t": ts}, "t"))
	assert.Equal(t, ts, Time(map[string]interface{}{"t": &ts}, "t"))
	assert.Equal(t, ts, Time(map[string]interface{}{"t": "2026-10-18T08:00:00Z"}, "t"))
	assert.Equal(t,
		time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC),
		Time(map[string]interface{}{"t": "2026-10-18"}, "t"))
	assert.True(t, Time(map[string]interface{}{"t": "yesterday"}, "t").IsZero())
	assert.True(t, Time(map[string]interface{}{}, "t").IsZero())
}

func TestDate(t *testing.T) {
	want := civil.Date{Year: 2026, Month: time.October, Day: 18}

	assert.Equal(t, want, Date(map[string]interface{}{"d": "2026-10-18"}, "d"))
	assert.Equal(t, want, Date(map[string]interface{}{"d": time.Date(2026, time.October, 18, 23, 0, 0, 0, time.UTC)}, "d"))
	assert.False(t, Date(map[string]interface{}{"d": 5}, "d").IsValid())
}

func TestString(t *testing.T) {
	assert.Equal(t, "food", String(map[string]interface{}{"c": "food"}, "c"))
	assert.Equal(t, "", String(map[string]interface{}{"c": 3}, "c"))
}

func TestUserCollection(t *testing.T) {
	assert.Equal(t, "artifacts/app/users/u1/transactions", UserCollection("/artifacts/app/", "u1", "transactions"))
}

func TestIsServerTimestamp(t *testing.T) {
	assert.True(t, IsServerTimestamp(ServerTimestamp))
	assert.False(t, IsServerTimestamp(time.Now()))
}
