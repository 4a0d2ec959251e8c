package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/app"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/docstore"
	"github.com/dvloznov/budget-tracker/internal/docstore/inmemory"
	"github.com/dvloznov/budget-tracker/internal/forecast"
	"github.com/dvloznov/budget-tracker/internal/identity"
	"github.com/dvloznov/budget-tracker/internal/identity/local"
	"github.com/dvloznov/budget-tracker/internal/infra/firebaseauth"
	infraFS "github.com/dvloznov/budget-tracker/internal/infra/firestore"
	"github.com/dvloznov/budget-tracker/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		port    = flag.Int("port", 0, "HTTP server port (overrides PORT)")
		variant = flag.String("variant", "", "ledger or budget (overrides APP_VARIANT)")
		backend = flag.String("store", "", "firestore or memory (overrides STORE_BACKEND)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *variant != "" {
		cfg.Variant = config.Variant(*variant)
	}
	if *backend != "" {
		cfg.StoreBackend = *backend
	}

	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, provider, closer, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open backend")
	}
	defer closer.Close()

	var forecaster forecast.Forecaster
	if cfg.Variant == config.VariantBudget {
		if cfg.ForecastEnabled() {
			g, err := forecast.NewGeminiForecaster(ctx, forecast.GeminiConfig{
				APIKey:  cfg.GeminiAPIKey,
				Model:   cfg.GeminiModel,
				BaseURL: cfg.GeminiBaseURL,
			}, log)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create forecast client")
			}
			forecaster = g
		} else {
			log.Warn().Msg("No GEMINI_API_KEY configured - forecasts will be disabled")
		}
	}

	a := app.New(ctx, app.Options{
		Variant:          cfg.Variant,
		Namespace:        cfg.Namespace,
		InitialAuthToken: cfg.InitialAuthToken,
		Location:         cfg.Location,
		CORSOrigins:      cfg.CORSAllowOrigins,
	}, store, provider, forecaster, log)
	defer a.Close()

	a.Start(ctx)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("variant", string(cfg.Variant)).
			Str("store", cfg.StoreBackend).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openBackend returns the document store and identity provider for the
// configured backend.
func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (docstore.Store, identity.Provider, io.Closer, error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn().Msg("Using in-memory store - data is lost on exit")
		return inmemory.NewStore(), local.New(log), nopCloser{}, nil
	}

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("firebase.Auth: %w", err)
	}

	store, err := infraFS.NewFromApp(ctx, fbApp, log)
	if err != nil {
		return nil, nil, nil, err
	}

	provider, err := firebaseauth.New(ctx, cfg.FirebaseAPIKey, authClient, log)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	return store, provider, store, nil
}
