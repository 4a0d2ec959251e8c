package forecast

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// ParseForecast decodes the model's text payload. Empty text, invalid JSON,
// a JSON null and records without a month label fail with
// *domain.ForecastError.
func ParseForecast(text string) ([]domain.ForecastRecord, error) {
	clean := cleanModelJSON(text)
	if clean == "" {
		return nil, &domain.ForecastError{Reason: "response has no text payload"}
	}

	var records []domain.ForecastRecord
	if err := json.Unmarshal([]byte(clean), &records); err != nil {
		return nil, &domain.ForecastError{Reason: "response is not valid JSON", Err: err}
	}
	if records == nil {
		return nil, &domain.ForecastError{Reason: "response is not a forecast array"}
	}

	for i, r := range records {
		if strings.TrimSpace(r.Month) == "" {
			return nil, &domain.ForecastError{Reason: fmt.Sprintf("record %d has no month label", i)}
		}
	}

	return records, nil
}

// cleanModelJSON strips Markdown fences and any chatter around the array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
