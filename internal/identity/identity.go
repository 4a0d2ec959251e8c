// Package identity describes the hosted identity provider the session
// manager signs in through.
package identity

import (
	"context"
	"sync"

	"github.com/dvloznov/budget-tracker/internal/watch"
)

// Identity is an authenticated user. Anonymous identities carry no email.
type Identity struct {
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous"`
	IDToken   string `json:"-"`
}

// Provider is the identity provider collaborator. Sign-in calls publish the
// new identity to watchers; SignOut publishes nil.
type Provider interface {
	SignInAnonymously(ctx context.Context) (*Identity, error)
	SignInWithToken(ctx context.Context, token string) (*Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	Current() *Identity
	Watch(fn func(*Identity)) (cancel func())
}

// Notifier holds the current identity and fans changes out to watchers.
// Providers embed it.
type Notifier struct {
	mu       sync.RWMutex
	current  *Identity
	watchers watch.Set[*Identity]
}

// Current returns the last published identity, or nil when signed out.
func (n *Notifier) Current() *Identity {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return clone(n.current)
}

// Watch registers fn and returns a function that removes it.
func (n *Notifier) Watch(fn func(*Identity)) func() {
	return n.watchers.Add(func(id *Identity) { fn(clone(id)) })
}

// Publish stores id and calls every watcher with a copy of it.
func (n *Notifier) Publish(id *Identity) {
	n.mu.Lock()
	n.current = clone(id)
	n.mu.Unlock()

	n.watchers.Emit(id)
}

func clone(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}
