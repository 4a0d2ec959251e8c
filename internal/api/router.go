// Package api exposes the tracker over a local JSON API and a WebSocket
// stream.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/handlers"
	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/budget"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/session"
)

// Deps are the components the router serves. Ledger is set for the ledger
// variant and Tracker for the budget variant.
type Deps struct {
	Sessions    *session.Manager
	Ledger      *ledger.Ledger
	Tracker     *budget.Tracker
	CORSOrigins []string
	Log         zerolog.Logger
}

// NewRouter builds the HTTP handler with middleware and every route of the
// configured variant.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.CORS(d.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", handlers.Health)

	sessionHandler := handlers.NewSessionHandler(d.Sessions, d.Log)
	streamHandler := handlers.NewStreamHandler(d.Sessions, d.Ledger, d.Tracker, d.CORSOrigins, d.Log)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", sessionHandler.GetSession)
		r.Get("/stream", streamHandler.ServeHTTP)

		if d.Ledger != nil {
			r.Post("/session/register", sessionHandler.Register)
			r.Post("/session/login", sessionHandler.Login)
			r.Post("/session/logout", sessionHandler.Logout)

			tx := handlers.NewTransactionsHandler(d.Ledger, d.Log)
			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", tx.ListTransactions)
				r.Post("/", tx.CreateTransaction)
				r.Delete("/{id}", tx.DeleteTransaction)
			})
			r.Put("/mode", tx.SetMode)
			r.Get("/metrics", tx.GetMetrics)
		}

		if d.Tracker != nil {
			b := handlers.NewBudgetHandler(d.Tracker, d.Log)
			r.Get("/items", b.ListItems)
			r.Post("/items", b.AddItem)
			r.Get("/forecast", b.GetForecast)
			r.Post("/forecast", b.GenerateForecast)
		}
	})

	return r
}
