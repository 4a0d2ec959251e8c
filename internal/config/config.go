// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Variant selects which flavour of the tracker the process serves.
type Variant string

const (
	// VariantLedger tracks transactions with actual/forecasted status and
	// email/password accounts.
	VariantLedger Variant = "ledger"
	// VariantBudget keeps items with a running summary and model forecasts,
	// signed in anonymously.
	VariantBudget Variant = "budget"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Config holds application configuration.
type Config struct {
	Port      int
	Variant   Variant
	AppID     string
	Namespace string // collection prefix, defaults to artifacts/<AppID>

	StoreBackend      string
	FirebaseProjectID string
	FirebaseAPIKey    string
	InitialAuthToken  string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	LogFormat        string
	LogLevel         string
	CORSAllowOrigins []string
	Location         *time.Location
}

// Load reads configuration from environment variables, after loading a .env
// file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	appID := getEnv("APP_ID", "default-app-id")

	cfg := &Config{
		Port:              getEnvAsInt("PORT", 8080),
		Variant:           Variant(strings.ToLower(getEnv("APP_VARIANT", string(VariantLedger)))),
		AppID:             appID,
		Namespace:         getEnv("APP_NAMESPACE", "artifacts/"+appID),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", BackendFirestore)),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:    getEnv("FIREBASE_API_KEY", ""),
		InitialAuthToken:  getEnv("INITIAL_AUTH_TOKEN", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", ""),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		LogFormat:         getEnv("LOG_FORMAT", "human"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigins:  getEnvAsList("CORS_ALLOW_ORIGINS", []string{"*"}),
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("Load: invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Variant {
	case VariantLedger, VariantBudget:
	default:
		return fmt.Errorf("Validate: unknown APP_VARIANT %q", c.Variant)
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("Validate: FIREBASE_PROJECT_ID is required for the firestore backend")
		}
		if c.FirebaseAPIKey == "" {
			return fmt.Errorf("Validate: FIREBASE_API_KEY is required for the firestore backend")
		}
	default:
		return fmt.Errorf("Validate: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("Validate: invalid PORT %d", c.Port)
	}
	if strings.Count(strings.Trim(c.Namespace, "/"), "/")%2 != 1 {
		return fmt.Errorf("Validate: APP_NAMESPACE %q must have an even number of path segments", c.Namespace)
	}
	return nil
}

// ForecastEnabled reports whether the budget variant can call the model.
func (c *Config) ForecastEnabled() bool {
	return c.Variant == VariantBudget && c.GeminiAPIKey != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
