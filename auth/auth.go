// Package auth provides the authentication mechanisms of the Liminal SDK:
// providers that supply third-party access tokens, and the credential types
// the Liminal API issues in exchange for them.
package auth

import (
	"context"

	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
)

// Provider supplies a bearer access token from an identity provider. The
// token is exchanged for Liminal credentials. AccessToken may block for the
// duration of an interactive challenge.
type Provider interface {
	AccessToken(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

// AccessToken calls f.
func (f ProviderFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticProvider returns a fixed token. Useful when the identity provider
// token is obtained out of band.
type StaticProvider struct {
	token string
}

// NewStaticProvider creates a provider that always returns token.
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

// AccessToken returns the configured token.
func (p *StaticProvider) AccessToken(context.Context) (string, error) {
	if p.token == "" {
		return "", sdkerrors.Auth("No valid access token provided")
	}
	return p.token, nil
}
