package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
	"github.com/liminal-ai-security/liminal-sdk-go/logger"
)

const (
	// DefaultChallengeTimeout bounds the wait for out-of-band approval.
	DefaultChallengeTimeout = 60 * time.Second

	deviceCodeInstructions = "To sign in, use a web browser to open the page %s and enter the code %s to authenticate."
)

// DefaultScopes are requested when none are configured.
var DefaultScopes = []string{"User.Read"}

// DeviceCodeFlowProvider obtains Microsoft Entra ID access tokens through the
// OAuth 2.0 device authorization grant. Tokens are cached in memory; a cached
// token is reused until it expires and then silently refreshed when the
// provider issued a refresh token.
type DeviceCodeFlowProvider struct {
	cfg     oauth2.Config
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// DeviceCodeOption configures a DeviceCodeFlowProvider.
type DeviceCodeOption func(*DeviceCodeFlowProvider)

// WithScopes overrides DefaultScopes.
func WithScopes(scopes ...string) DeviceCodeOption {
	return func(p *DeviceCodeFlowProvider) { p.cfg.Scopes = scopes }
}

// WithChallengeTimeout overrides DefaultChallengeTimeout.
func WithChallengeTimeout(d time.Duration) DeviceCodeOption {
	return func(p *DeviceCodeFlowProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithEndpoint replaces the Microsoft endpoint derived from the tenant.
func WithEndpoint(ep oauth2.Endpoint) DeviceCodeOption {
	return func(p *DeviceCodeFlowProvider) {
		ep.AuthStyle = oauth2.AuthStyleInParams
		p.cfg.Endpoint = ep
	}
}

// WithHTTPClient sets the client used to reach the identity provider.
func WithHTTPClient(hc *http.Client) DeviceCodeOption {
	return func(p *DeviceCodeFlowProvider) { p.http = hc }
}

// WithLogger sets the logger that receives the sign-in instructions.
func WithLogger(l *zap.Logger) DeviceCodeOption {
	return func(p *DeviceCodeFlowProvider) { p.log = l }
}

// WithCachedToken seeds the token cache.
func WithCachedToken(tok *oauth2.Token) DeviceCodeOption {
	return func(p *DeviceCodeFlowProvider) { p.token = tok }
}

// NewDeviceCodeFlowProvider creates a provider for the given Entra ID tenant
// and public client application.
func NewDeviceCodeFlowProvider(tenantID, clientID string, opts ...DeviceCodeOption) *DeviceCodeFlowProvider {
	ep := microsoft.AzureADEndpoint(tenantID)
	ep.AuthStyle = oauth2.AuthStyleInParams

	p := &DeviceCodeFlowProvider{
		cfg: oauth2.Config{
			ClientID: clientID,
			Endpoint: ep,
			Scopes:   DefaultScopes,
		},
		timeout: DefaultChallengeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrNop(p.log).With(logger.Scope("auth.devicecode"))
	return p
}

// Token returns a copy of the cached token, or nil.
func (p *DeviceCodeFlowProvider) Token() *oauth2.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == nil {
		return nil
	}
	tok := *p.token
	return &tok
}

// AccessToken returns a cached token when one is valid, and otherwise runs a
// device-code challenge. Concurrent callers share one challenge.
func (p *DeviceCodeFlowProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
	}

	if tok, ok := p.cached(ctx); ok {
		return tok, nil
	}

	da, err := p.cfg.DeviceAuth(ctx)
	if err != nil {
		return "", sdkerrors.Wrap(sdkerrors.KindAuth, err, "Could not initiate device code flow: %v", err)
	}

	p.log.Info(fmt.Sprintf(deviceCodeInstructions, da.VerificationURI, da.UserCode))

	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tok, err := p.cfg.DeviceAccessToken(wctx, da)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// Cancelling wctx abandons the challenge, so a late approval
			// cannot complete it.
			return "", sdkerrors.Wrap(sdkerrors.KindAuth, err, "Timed out waiting for authentication challenge")
		}
		return "", sdkerrors.Wrap(sdkerrors.KindAuth, err, "Device code authentication failed: %v", err)
	}

	p.token = tok
	return tok.AccessToken, nil
}

func (p *DeviceCodeFlowProvider) cached(ctx context.Context) (string, bool) {
	if p.token == nil {
		return "", false
	}
	if p.token.Valid() {
		return p.token.AccessToken, true
	}
	if p.token.RefreshToken == "" {
		return "", false
	}

	tok, err := p.cfg.TokenSource(ctx, p.token).Token()
	if err != nil {
		p.log.Debug("silent token refresh failed, starting device code flow", logger.Error(err))
		return "", false
	}
	p.token = tok
	return tok.AccessToken, true
}
