// Package firebaseauth implements identity.Provider on Firebase
// Authentication.
package firebaseauth

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/identity"
)

// TokenVerifier resolves an ID token to its claims. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Provider signs in through the Identity Toolkit REST API.
type Provider struct {
	identity.Notifier

	rp       *identitytoolkit.RelyingpartyService
	verifier TokenVerifier
	logger   zerolog.Logger
}

// New creates a Provider for the project owning apiKey. verifier may be nil,
// in which case custom-token sign-in is unavailable.
func New(ctx context.Context, apiKey string, verifier TokenVerifier, logger zerolog.Logger, opts ...option.ClientOption) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("New: empty API key")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("New: creating identity toolkit client: %w", err)
	}

	return &Provider{
		rp:       svc.Relyingparty,
		verifier: verifier,
		logger:   logger,
	}, nil
}

// SignInAnonymously implements identity.Provider.
func (p *Provider) SignInAnonymously(ctx context.Context) (*identity.Identity, error) {
	resp, err := p.rp.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{}).Context(ctx).Do()
	if err != nil {
		return nil, authError("SignInAnonymously", err)
	}

	id := &identity.Identity{UID: resp.LocalId, Anonymous: true, IDToken: resp.IdToken}
	p.signedIn(id)
	return id, nil
}

// SignInWithToken implements identity.Provider for custom tokens minted by
// the host environment.
func (p *Provider) SignInWithToken(ctx context.Context, token string) (*identity.Identity, error) {
	if p.verifier == nil {
		return nil, &domain.AuthError{Op: "SignInWithToken", Message: "custom token sign-in is not configured"}
	}

	resp, err := p.rp.VerifyCustomToken(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyCustomTokenRequest{
		Token:             token,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, authError("SignInWithToken", err)
	}

	claims, err := p.verifier.VerifyIDToken(ctx, resp.IdToken)
	if err != nil {
		return nil, &domain.AuthError{Op: "SignInWithToken", Message: err.Error(), Err: err}
	}

	email, _ := claims.Claims["email"].(string)
	id := &identity.Identity{UID: claims.UID, Email: email, IDToken: resp.IdToken}
	p.signedIn(id)
	return id, nil
}

// SignInWithPassword implements identity.Provider.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	resp, err := p.rp.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, authError("SignInWithPassword", err)
	}

	id := &identity.Identity{UID: resp.LocalId, Email: resp.Email, IDToken: resp.IdToken}
	p.signedIn(id)
	return id, nil
}

// CreateAccount implements identity.Provider. The new account is signed in.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (*identity.Identity, error) {
	resp, err := p.rp.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, authError("CreateAccount", err)
	}

	id := &identity.Identity{UID: resp.LocalId, Email: resp.Email, IDToken: resp.IdToken}
	p.signedIn(id)
	return id, nil
}

// SignOut implements identity.Provider. Tokens are held in memory only, so
// signing out is local.
func (p *Provider) SignOut(ctx context.Context) error {
	p.Publish(nil)
	p.logger.Info().Msg("Signed out")
	return nil
}

func (p *Provider) signedIn(id *identity.Identity) {
	p.logger.Info().
		Str("uid", id.UID).
		Bool("anonymous", id.Anonymous).
		Msg("Signed in")
	p.Publish(id)
}

// authError keeps the provider's own message so callers can show it as is.
func authError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return &domain.AuthError{Op: op, Message: gerr.Message, Err: err}
	}
	return &domain.AuthError{Op: op, Message: err.Error(), Err: err}
}

var _ identity.Provider = (*Provider)(nil)
