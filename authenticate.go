package liminal

import (
	"context"

	"github.com/liminal-ai-security/liminal-sdk-go/auth"
)

// AuthenticateFromAuthProvider exchanges an access token from p for Liminal
// credentials. A nil p reuses the provider of the previous exchange; the
// provider is also used to re-authenticate an expired session that carries
// no refresh token.
// Server: GET /api/v1/auth/login/oauth/access-token
func (c *Client) AuthenticateFromAuthProvider(ctx context.Context, p auth.Provider) error {
	_, err := c.session.AuthenticateFromProvider(ctx, p)
	return err
}

// AuthenticateFromSessionID validates and adopts a session identifier. An
// empty id revalidates the stored one.
// Server: GET /api/v1/users/me
func (c *Client) AuthenticateFromSessionID(ctx context.Context, id string) error {
	_, err := c.session.AuthenticateFromSessionID(ctx, id)
	return err
}

// AuthenticateFromSessionCookie validates and adopts a session cookie. An
// empty cookie revalidates the stored one.
// Server: GET /api/v1/users/me
func (c *Client) AuthenticateFromSessionCookie(ctx context.Context, cookie string) error {
	_, err := c.session.AuthenticateFromSessionCookie(ctx, cookie)
	return err
}

// AuthenticateFromToken logs in with a test-automation API key. An empty key
// reuses the previous one.
// Server: POST /api/v1/auth/test-automation/login
func (c *Client) AuthenticateFromToken(ctx context.Context, token string) error {
	_, err := c.session.AuthenticateFromToken(ctx, token)
	return err
}

// AuthenticateFromRefreshToken exchanges a refresh token for a new token
// pair. An empty token uses the stored refresh token.
// Server: POST /api/v1/auth/refresh-token
func (c *Client) AuthenticateFromRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := c.session.AuthenticateFromRefreshToken(ctx, refreshToken)
	return err
}

// NewFromAuthProvider creates a client authenticated through p.
func NewFromAuthProvider(ctx context.Context, cfg Config, p auth.Provider) (*Client, error) {
	return newAuthenticated(cfg, func(c *Client) error { return c.AuthenticateFromAuthProvider(ctx, p) })
}

// NewFromSessionID creates a client authenticated with a session identifier.
func NewFromSessionID(ctx context.Context, cfg Config, id string) (*Client, error) {
	return newAuthenticated(cfg, func(c *Client) error { return c.AuthenticateFromSessionID(ctx, id) })
}

// NewFromSessionCookie creates a client authenticated with a session cookie.
func NewFromSessionCookie(ctx context.Context, cfg Config, cookie string) (*Client, error) {
	return newAuthenticated(cfg, func(c *Client) error { return c.AuthenticateFromSessionCookie(ctx, cookie) })
}

// NewFromToken creates a client authenticated with a test-automation key.
func NewFromToken(ctx context.Context, cfg Config, token string) (*Client, error) {
	return newAuthenticated(cfg, func(c *Client) error { return c.AuthenticateFromToken(ctx, token) })
}

// NewFromRefreshToken creates a client authenticated with a refresh token.
func NewFromRefreshToken(ctx context.Context, cfg Config, refreshToken string) (*Client, error) {
	return newAuthenticated(cfg, func(c *Client) error { return c.AuthenticateFromRefreshToken(ctx, refreshToken) })
}

func newAuthenticated(cfg Config, authenticate func(*Client) error) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := authenticate(c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
