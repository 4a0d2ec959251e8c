package forecast

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// GeminiConfig configures a GeminiForecaster.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // overrides the public endpoint, used by tests
	APIVersion string
	HTTPClient *http.Client
	Now        func() time.Time
}

// GeminiForecaster calls the Gemini API with a response schema so the model
// answers in the forecast record shape.
type GeminiForecaster struct {
	client *genai.Client
	model  string
	now    func() time.Time
	logger zerolog.Logger
}

// NewGeminiForecaster creates a forecaster backed by the Gemini API.
func NewGeminiForecaster(ctx context.Context, cfg GeminiConfig, logger zerolog.Logger) (*GeminiForecaster, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("NewGeminiForecaster: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiForecaster: create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &GeminiForecaster{
		client: client,
		model:  model,
		now:    now,
		logger: logger.With().Str("component", "forecast").Str("model", model).Logger(),
	}, nil
}

// Generate implements Forecaster.
func (g *GeminiForecaster) Generate(ctx context.Context, items []domain.Item) ([]domain.ForecastRecord, error) {
	prompt := BuildPrompt(items, g.now())

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, &domain.ForecastError{Reason: "generate content", Err: err}
	}

	records, err := ParseForecast(resp.Text())
	if err != nil {
		g.logger.Warn().Err(err).Msg("Model returned an unusable forecast")
		return nil, err
	}

	g.logger.Debug().
		Int("items", len(items)).
		Int("months", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Forecast received")
	return records, nil
}

var _ Forecaster = (*GeminiForecaster)(nil)
