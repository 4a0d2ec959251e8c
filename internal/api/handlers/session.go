package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/identity"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/session"
)

// SessionState is the body of GET /api/session and of session stream messages.
type SessionState struct {
	Identity *identity.Identity `json:"identity"`
	Ready    bool               `json:"ready"`
	Busy     bool               `json:"busy"`
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	sessions *session.Manager
	log      zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *session.Manager, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log}
}

// State returns the current session state.
func (h *SessionHandler) State() SessionState {
	return SessionState{
		Identity: h.sessions.Current(),
		Ready:    h.sessions.Ready(),
		Busy:     h.sessions.Busy(),
	}
}

// GetSession handles GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.State())
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.sessions.Register(r.Context(), req.Email, req.Password); err != nil {
		writeDomainError(w, logger.FromContext(r.Context()), err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, h.State())
}

// Login handles POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.sessions.Login(r.Context(), req.Email, req.Password); err != nil {
		writeDomainError(w, logger.FromContext(r.Context()), err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.State())
}

// Logout handles POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		writeDomainError(w, logger.FromContext(r.Context()), err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.State())
}
