// Package liminal provides a Go client library for the Liminal API.
//
// A Client is created unauthenticated with New, or authenticated in one step
// with one of the NewFrom* factories:
//
//	provider := auth.NewDeviceCodeFlowProvider(tenantID, clientID)
//	client, err := liminal.NewFromAuthProvider(ctx, liminal.Config{
//		ServerURL: "https://api.example.liminal.ai",
//	}, provider)
//
//	instance, err := client.LLM.GetModelInstance(ctx, "My Model")
//	cleansed, err := client.Prompts.Cleanse(ctx, instance.ID, text, nil)
//
// Expired bearer sessions are refreshed transparently. Register a callback
// with AddCredentialCallback to persist new credentials.
package liminal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/liminal-ai-security/liminal-sdk-go/auth"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/apiclient"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/transport"
	"github.com/liminal-ai-security/liminal-sdk-go/llm"
	"github.com/liminal-ai-security/liminal-sdk-go/logger"
	"github.com/liminal-ai-security/liminal-sdk-go/prompt"
	"github.com/liminal-ai-security/liminal-sdk-go/thread"
)

// DefaultSource is sent as the source of every request.
const DefaultSource = transport.DefaultSource

// Client is the main SDK client for the Liminal API.
type Client struct {
	session *apiclient.Session

	// Service clients
	LLM     *llm.Client
	Threads *thread.Client
	Prompts *prompt.Client
}

// Config holds configuration for the SDK client. It is read once at
// construction.
type Config struct {
	ServerURL string
	// HTTPClient is optional. It is shared with the caller and never closed
	// by the SDK. When nil each request uses a short-lived client bounded by
	// RequestTimeout.
	HTTPClient *http.Client
	// Logger is optional; nil disables logging.
	Logger *zap.Logger
	// RequestTimeout bounds buffered requests on SDK-owned clients (default 60s).
	RequestTimeout time.Duration
	// Source identifies the caller in every request (default "sdk").
	Source string
	// OmitSourceQuery stops sending source as a query parameter. Prompt
	// bodies still carry it.
	OmitSourceQuery bool
	// Scheme is the credential artifact this deployment issues from its
	// exchange and login endpoints (default bearer).
	Scheme auth.Scheme
	// Routes overrides endpoint paths. Empty fields use the defaults.
	Routes Routes
	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64
	// RateBurst is the limiter burst size (default 1).
	RateBurst int
	// UserAgent overrides the default User-Agent.
	UserAgent string
	// Clock overrides time.Now for expiry checks.
	Clock func() time.Time
}

// AuthRoutes are the authentication endpoint paths.
type AuthRoutes struct {
	OAuthAccessToken    string
	UsersMe             string
	TestAutomationLogin string
	RefreshToken        string
}

// Routes pins every endpoint path of a deployment.
type Routes struct {
	Auth   AuthRoutes
	LLM    llm.Routes
	Thread thread.Routes
	Prompt prompt.Routes
}

// DefaultRoutes returns the /api/v1 paths.
func DefaultRoutes() Routes {
	return Routes{
		Auth: AuthRoutes{
			OAuthAccessToken:    "/api/v1/auth/login/oauth/access-token",
			UsersMe:             "/api/v1/users/me",
			TestAutomationLogin: "/api/v1/auth/test-automation/login",
			RefreshToken:        "/api/v1/auth/refresh-token",
		},
		LLM:    llm.DefaultRoutes(),
		Thread: thread.DefaultRoutes(),
		Prompt: prompt.DefaultRoutes(),
	}
}

// WithDefaults fills empty paths from DefaultRoutes.
func (r Routes) WithDefaults() Routes {
	d := DefaultRoutes().Auth
	if r.Auth.OAuthAccessToken == "" {
		r.Auth.OAuthAccessToken = d.OAuthAccessToken
	}
	if r.Auth.UsersMe == "" {
		r.Auth.UsersMe = d.UsersMe
	}
	if r.Auth.TestAutomationLogin == "" {
		r.Auth.TestAutomationLogin = d.TestAutomationLogin
	}
	if r.Auth.RefreshToken == "" {
		r.Auth.RefreshToken = d.RefreshToken
	}
	r.LLM = r.LLM.WithDefaults()
	r.Thread = r.Thread.WithDefaults()
	r.Prompt = r.Prompt.WithDefaults()
	return r
}

// New creates an unauthenticated Liminal API client. Authenticate it with
// one of the Authenticate* methods before calling the service clients.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	switch cfg.Scheme {
	case "", auth.SchemeBearer, auth.SchemeSessionCookie:
	default:
		return nil, fmt.Errorf("invalid scheme: %s (must be %q or %q)", cfg.Scheme, auth.SchemeBearer, auth.SchemeSessionCookie)
	}

	log := logger.OrNop(cfg.Logger)
	routes := cfg.Routes.WithDefaults()

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	exec := transport.New(transport.Options{
		BaseURL:    cfg.ServerURL,
		HTTPClient: cfg.HTTPClient,
		Timeout:    cfg.RequestTimeout,
		Source:     cfg.Source,
		OmitSource: cfg.OmitSourceQuery,
		UserAgent:  cfg.UserAgent,
		Limiter:    limiter,
		Logger:     log,
	})

	session := apiclient.New(apiclient.Config{
		Executor: exec,
		Store:    auth.NewStore(log),
		Routes: apiclient.Routes{
			OAuthAccessToken:    routes.Auth.OAuthAccessToken,
			UsersMe:             routes.Auth.UsersMe,
			TestAutomationLogin: routes.Auth.TestAutomationLogin,
			RefreshToken:        routes.Auth.RefreshToken,
		},
		Scheme: cfg.Scheme,
		Logger: log,
		Now:    cfg.Clock,
	})

	source := cfg.Source
	if source == "" {
		source = DefaultSource
	}

	return &Client{
		session: session,
		LLM:     llm.NewClient(session, routes.LLM),
		Threads: thread.NewClient(session, routes.Thread),
		Prompts: prompt.NewClient(session, routes.Prompt, source, log),
	}, nil
}

// Credential returns the active credential, or nil before authentication.
func (c *Client) Credential() auth.Credential {
	return c.session.Store().Load()
}

// SessionID returns the active session identifier or session cookie value,
// or "" when the client holds a bearer session or no credential.
func (c *Client) SessionID() string {
	switch cred := c.Credential().(type) {
	case auth.SessionID:
		return cred.Value
	case auth.SessionCookie:
		return cred.Value
	default:
		return ""
	}
}

// Refreshing reports whether a credential refresh is in flight.
func (c *Client) Refreshing() bool {
	return c.session.Refreshing()
}

// AddCredentialCallback registers fn to receive every newly obtained
// credential, in registration order. The returned func cancels exactly this
// registration.
func (c *Client) AddCredentialCallback(fn func(auth.Credential)) (cancel func()) {
	return c.session.Store().OnCredential(fn)
}

// AddRefreshTokenCallback registers fn to receive each new refresh token.
func (c *Client) AddRefreshTokenCallback(fn func(refreshToken string)) (cancel func()) {
	return c.AddCredentialCallback(func(cred auth.Credential) {
		if b, ok := cred.(auth.BearerSession); ok && b.RefreshToken != "" {
			fn(b.RefreshToken)
		}
	})
}

// AddSessionCallback registers fn to receive each new session identifier or
// session cookie value.
func (c *Client) AddSessionCallback(fn func(session string)) (cancel func()) {
	return c.AddCredentialCallback(func(cred auth.Credential) {
		switch v := cred.(type) {
		case auth.SessionID:
			fn(v.Value)
		case auth.SessionCookie:
			fn(v.Value)
		}
	})
}

// Request is a custom call relative to the server root.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	Body    any
}

// Do sends an authenticated request through the client's pipeline and decodes
// the JSON response into out, which may be nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	return c.session.Do(ctx, &transport.Request{
		Method:  req.Method,
		Path:    req.Path,
		Headers: req.Headers,
		Query:   req.Query,
		Body:    req.Body,
	}, out)
}

// Close stops the client from sending further requests. A caller-supplied
// HTTPClient is left open.
func (c *Client) Close() {
	c.session.Close()
}
