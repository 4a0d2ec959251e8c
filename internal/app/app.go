// Package app wires the session, the variant's store adapter and the HTTP
// router into one runnable unit.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api"
	"github.com/dvloznov/budget-tracker/internal/budget"
	"github.com/dvloznov/budget-tracker/internal/config"
	"github.com/dvloznov/budget-tracker/internal/docstore"
	"github.com/dvloznov/budget-tracker/internal/forecast"
	"github.com/dvloznov/budget-tracker/internal/identity"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/metrics"
	"github.com/dvloznov/budget-tracker/internal/session"
)

// Options configures an App.
type Options struct {
	Variant          config.Variant
	Namespace        string
	InitialAuthToken string
	Location         *time.Location
	CORSOrigins      []string
	Now              func() time.Time
}

// App is one running tracker session.
type App struct {
	Sessions *session.Manager
	Ledger   *ledger.Ledger
	Tracker  *budget.Tracker

	handler http.Handler
	unwatch func()
	log     zerolog.Logger
}

// New builds an App. ctx bounds the lifetime of the live subscriptions.
// forecaster is only used by the budget variant and may be nil.
func New(ctx context.Context, opts Options, store docstore.Store, provider identity.Provider, forecaster forecast.Forecaster, log zerolog.Logger) *App {
	a := &App{
		Sessions: session.NewManager(provider, opts.InitialAuthToken, log.With().Str("component", "session").Logger()),
		log:      log,
	}

	var bind func(context.Context, *identity.Identity) error
	switch opts.Variant {
	case config.VariantBudget:
		a.Tracker = budget.New(store, opts.Namespace, forecaster, log)
		bind = a.Tracker.Bind
	default:
		a.Ledger = ledger.New(store, opts.Namespace, metrics.NewEngine(opts.Now, opts.Location), log)
		bind = a.Ledger.Bind
		a.Sessions.OnLogout(a.Ledger.Reset)
	}

	a.unwatch = a.Sessions.Watch(func(id *identity.Identity) {
		if err := bind(ctx, id); err != nil {
			a.log.Error().Err(err).Msg("Failed to bind store subscription")
		}
	})

	a.handler = api.NewRouter(api.Deps{
		Sessions:    a.Sessions,
		Ledger:      a.Ledger,
		Tracker:     a.Tracker,
		CORSOrigins: opts.CORSOrigins,
		Log:         log,
	})

	return a
}

// Start runs the automatic sign-in.
func (a *App) Start(ctx context.Context) {
	a.Sessions.Start(ctx)
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close tears down subscriptions.
func (a *App) Close() {
	a.unwatch()
	a.Sessions.Stop()
	if a.Ledger != nil {
		a.Ledger.Close()
	}
	if a.Tracker != nil {
		a.Tracker.Close()
	}
}
