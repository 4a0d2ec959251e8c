// Package local is an identity.Provider that keeps accounts in memory. It
// pairs with the in-memory document store for offline runs and tests.
package local

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/identity"
)

// MinPasswordLength matches the hosted provider's rule.
const MinPasswordLength = 6

type account struct {
	uid  string
	hash []byte
}

// Provider keeps email accounts in memory. Messages mirror the hosted
// provider's error codes.
type Provider struct {
	identity.Notifier

	mu       sync.Mutex
	accounts map[string]account
	logger   zerolog.Logger
}

// New creates an empty Provider.
func New(logger zerolog.Logger) *Provider {
	return &Provider{
		accounts: make(map[string]account),
		logger:   logger,
	}
}

func (p *Provider) SignInAnonymously(ctx context.Context) (*identity.Identity, error) {
	id := &identity.Identity{UID: uuid.New().String(), Anonymous: true}
	p.Publish(id)
	return id, nil
}

// SignInWithToken takes the token as the uid.
func (p *Provider) SignInWithToken(ctx context.Context, token string) (*identity.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &domain.AuthError{Op: "SignInWithToken", Message: "INVALID_CUSTOM_TOKEN"}
	}
	id := &identity.Identity{UID: token}
	p.Publish(id)
	return id, nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	email = normalize(email)

	p.mu.Lock()
	acc, ok := p.accounts[email]
	p.mu.Unlock()

	if !ok {
		return nil, &domain.AuthError{Op: "SignInWithPassword", Message: "EMAIL_NOT_FOUND"}
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, &domain.AuthError{Op: "SignInWithPassword", Message: "INVALID_PASSWORD", Err: err}
	}

	id := &identity.Identity{UID: acc.uid, Email: email}
	p.Publish(id)
	return id, nil
}

func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*identity.Identity, error) {
	email = normalize(email)
	if len(password) < MinPasswordLength {
		return nil, &domain.AuthError{Op: "CreateAccount", Message: "WEAK_PASSWORD : Password should be at least 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, &domain.AuthError{Op: "CreateAccount", Message: err.Error(), Err: err}
	}

	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, &domain.AuthError{Op: "CreateAccount", Message: "EMAIL_EXISTS"}
	}
	acc := account{uid: uuid.New().String(), hash: hash}
	p.accounts[email] = acc
	p.mu.Unlock()

	p.logger.Info().Str("uid", acc.uid).Msg("Local account created")

	id := &identity.Identity{UID: acc.uid, Email: email}
	p.Publish(id)
	return id, nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	p.Publish(nil)
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ identity.Provider = (*Provider)(nil)
