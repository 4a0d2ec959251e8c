package docstore

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// The helpers below read loosely typed document fields. Missing or malformed
// values come back as zero values; records are never rejected on read.

// Decimal reads a numeric field.
func Decimal(data map[string]interface{}, key string) decimal.Decimal {
	switch v := data[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case decimal.Decimal:
		return v
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// String reads a string field.
func String(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

// Time reads a timestamp field. Calendar-date strings are read at midday UTC.
func Time(data map[string]interface{}, key string) time.Time {
	switch v := data[key].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		if d, err := civil.ParseDate(v); err == nil {
			return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// Date reads a calendar date stored either as "YYYY-MM-DD" or as a timestamp.
func Date(data map[string]interface{}, key string) civil.Date {
	switch v := data[key].(type) {
	case string:
		if d, err := civil.ParseDate(v); err == nil {
			return d
		}
	case time.Time:
		return civil.DateOf(v)
	}
	return civil.Date{}
}

// Float converts an amount to the float64 the store keeps on the wire.
func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
