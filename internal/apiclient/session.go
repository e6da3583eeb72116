// Package apiclient is the authenticated request pipeline shared by the
// resource clients.
package apiclient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/liminal-ai-security/liminal-sdk-go/auth"
	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/refresh"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/schema"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/transport"
	"github.com/liminal-ai-security/liminal-sdk-go/logger"
)

// Routes are the authentication endpoints of a deployment.
type Routes struct {
	OAuthAccessToken    string
	UsersMe             string
	TestAutomationLogin string
	RefreshToken        string
}

// Config wires a Session.
type Config struct {
	Executor *transport.Executor
	Store    *auth.Store
	Routes   Routes
	Scheme   auth.Scheme
	Logger   *zap.Logger
	Now      func() time.Time
}

// Session attaches the current credential to every request and refreshes it
// when it has expired.
type Session struct {
	exec   *transport.Executor
	store  *auth.Store
	coord  *refresh.Coordinator[auth.Credential]
	routes Routes
	scheme auth.Scheme
	log    *zap.Logger
	now    func() time.Time
}

// New creates a Session.
func New(cfg Config) *Session {
	s := &Session{
		exec:   cfg.Executor,
		store:  cfg.Store,
		routes: cfg.Routes,
		scheme: cfg.Scheme,
		log:    logger.OrNop(cfg.Logger).With(logger.Scope("apiclient")),
		now:    cfg.Now,
	}
	if s.scheme == "" {
		s.scheme = auth.SchemeBearer
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.coord = refresh.New(s.store.Notify)
	return s
}

// Store returns the session's credential store.
func (s *Session) Store() *auth.Store {
	return s.store
}

// Refreshing reports whether a credential refresh is in flight.
func (s *Session) Refreshing() bool {
	return s.coord.Refreshing()
}

// Do sends an authenticated request and decodes the body into out. out may
// be nil, or wrapped with schema.Data for enveloped responses.
func (s *Session) Do(ctx context.Context, req *transport.Request, out any) error {
	resp, err := s.Send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return schema.Decode(resp.Body, out)
}

// Send sends an authenticated request and returns the buffered response.
func (s *Session) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	attached, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.exec.Send(ctx, attached)
}

// Stream sends an authenticated request and returns its body line by line.
func (s *Session) Stream(ctx context.Context, req *transport.Request) (*transport.LineStream, error) {
	attached, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.exec.Stream(ctx, attached)
}

// maxPrepareAttempts bounds how often prepare goes back through the refresh
// path when a refresh starts between its checks.
const maxPrepareAttempts = 3

func (s *Session) prepare(ctx context.Context, req *transport.Request) (*transport.Request, error) {
	var cred auth.Credential
	for attempt := 0; attempt < maxPrepareAttempts; attempt++ {
		if err := s.ensureFresh(ctx); err != nil {
			return nil, err
		}
		if err := s.coord.Wait(ctx); err != nil {
			return nil, sdkerrors.Wrap(sdkerrors.KindRequest, err, "Error while waiting for credential refresh: %v", err)
		}
		cred = s.store.Load()
		if b, ok := cred.(auth.BearerSession); !ok || !b.NeedsRefresh(s.now()) {
			break
		}
	}

	out := req.Clone()
	if cred != nil {
		cred.Attach(out.Headers, out.Cookies)
	}
	return out, nil
}

// ensureFresh refreshes an expired bearer session before the request goes
// out. Concurrent callers share one refresh.
func (s *Session) ensureFresh(ctx context.Context) error {
	b, ok := s.store.Load().(auth.BearerSession)
	if !ok || !b.NeedsRefresh(s.now()) {
		return nil
	}
	_, err := s.coord.Collapse(ctx, s.autoRefresh)
	return err
}

func (s *Session) autoRefresh(ctx context.Context) (auth.Credential, bool, error) {
	cur := s.store.Load()
	b, ok := cur.(auth.BearerSession)
	if !ok || !b.NeedsRefresh(s.now()) {
		// Another refresh already replaced the credential.
		return cur, false, nil
	}

	s.log.Debug("access token expired, refreshing")
	s.store.Set(b.WithoutAccessToken())

	switch {
	case b.RefreshToken != "":
		return s.refreshToken(ctx, b.RefreshToken)
	case s.store.Provider() != nil:
		return s.exchangeProvider(ctx, s.store.Provider())
	default:
		return nil, false, sdkerrors.Auth("No valid refresh token provided")
	}
}

// Close stops the session from sending further requests.
func (s *Session) Close() {
	s.exec.Close()
}
