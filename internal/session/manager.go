// Package session owns the signed-in identity of the running process.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/identity"
)

// Manager tracks the current identity and runs the one-time automatic
// sign-in. It is safe for concurrent use.
type Manager struct {
	provider     identity.Provider
	initialToken string
	logger       zerolog.Logger

	autoOnce sync.Once
	ready    atomic.Bool
	busy     atomic.Bool

	mu       sync.RWMutex
	current  *identity.Identity
	onLogout []func()
	notifier identity.Notifier
	unwatch  func()
}

// NewManager creates a Manager. initialToken, when set, is tried before
// falling back to an anonymous sign-in.
func NewManager(provider identity.Provider, initialToken string, logger zerolog.Logger) *Manager {
	return &Manager{
		provider:     provider,
		initialToken: initialToken,
		logger:       logger,
	}
}

// Start subscribes to provider changes, marks the session ready and performs
// the automatic sign-in. Only the first call signs in; sign-outs never
// trigger it again.
func (m *Manager) Start(ctx context.Context) {
	m.autoOnce.Do(func() {
		unwatch := m.provider.Watch(m.setCurrent)
		m.mu.Lock()
		m.unwatch = unwatch
		m.mu.Unlock()

		m.setCurrent(m.provider.Current())
		m.ready.Store(true)

		if m.Current() != nil {
			return
		}

		var err error
		if m.initialToken != "" {
			_, err = m.provider.SignInWithToken(ctx, m.initialToken)
		} else {
			_, err = m.provider.SignInAnonymously(ctx)
		}
		if err != nil {
			m.logger.Error().Err(err).Msg("Automatic sign-in failed")
		}
	})
}

// Stop detaches from the provider.
func (m *Manager) Stop() {
	m.mu.Lock()
	unwatch := m.unwatch
	m.unwatch = nil
	m.mu.Unlock()

	if unwatch != nil {
		unwatch()
	}
}

// Register creates an email/password account and signs it in.
func (m *Manager) Register(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	m.busy.Store(true)
	defer m.busy.Store(false)

	id, err := m.provider.CreateAccount(ctx, strings.TrimSpace(email), password)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Registration failed")
		return nil, err
	}
	m.setCurrent(id)
	return id, nil
}

// Login signs in with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	m.busy.Store(true)
	defer m.busy.Store(false)

	id, err := m.provider.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Login failed")
		return nil, err
	}
	m.setCurrent(id)
	return id, nil
}

// Logout signs out and runs the registered logout hooks.
func (m *Manager) Logout(ctx context.Context) error {
	m.busy.Store(true)
	defer m.busy.Store(false)

	if err := m.provider.SignOut(ctx); err != nil {
		return err
	}
	m.setCurrent(nil)

	m.mu.RLock()
	hooks := append([]func(){}, m.onLogout...)
	m.mu.RUnlock()

	for _, h := range hooks {
		h()
	}
	return nil
}

// OnLogout registers fn to run after every explicit logout.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	m.onLogout = append(m.onLogout, fn)
	m.mu.Unlock()
}

// Watch registers fn for identity changes.
func (m *Manager) Watch(fn func(*identity.Identity)) func() {
	return m.notifier.Watch(fn)
}

// Current returns the signed-in identity, or nil.
func (m *Manager) Current() *identity.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	id := *m.current
	return &id
}

// Ready reports whether Start has run.
func (m *Manager) Ready() bool { return m.ready.Load() }

// Busy reports whether a register, login or logout call is in flight.
func (m *Manager) Busy() bool { return m.busy.Load() }

func (m *Manager) setCurrent(id *identity.Identity) {
	m.mu.Lock()
	changed := !sameIdentity(m.current, id)
	if id == nil {
		m.current = nil
	} else {
		cp := *id
		m.current = &cp
	}
	m.mu.Unlock()

	if changed {
		m.notifier.Publish(id)
	}
}

func sameIdentity(a, b *identity.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UID == b.UID
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return domain.NewValidationError("email", "is required")
	}
	if password == "" {
		return domain.NewValidationError("password", "is required")
	}
	return nil
}
