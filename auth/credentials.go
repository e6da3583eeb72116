package auth

import "time"

// Scheme selects the credential artifact a deployment issues from its login
// and exchange endpoints.
type Scheme string

const (
	// SchemeBearer deployments answer with an access/refresh token pair.
	SchemeBearer Scheme = "bearer"
	// SchemeSessionCookie deployments answer with an opaque session cookie.
	SchemeSessionCookie Scheme = "session"
)

// Cookie and header names on the wire.
const (
	SessionCookieName        = "session"
	AccessTokenCookie        = "accessToken"
	AccessTokenExpiresCookie = "accessTokenExpiresAt"
	RefreshTokenCookie       = "refreshToken"
	TestAutomationHeader     = "x-test-automation-api-key"
)

// Credential is the active authentication artifact of a client. It is one of
// BearerSession, SessionCookie or SessionID. Values are immutable; a refresh
// replaces the whole credential.
type Credential interface {
	// Attach adds the credential to an outgoing request.
	Attach(headers, cookies map[string]string)
	credential()
}

// BearerSession is an access token with optional expiry and refresh token.
type BearerSession struct {
	AccessToken          string
	AccessTokenExpiresAt *time.Time
	RefreshToken         string
}

func (BearerSession) credential() {}

// Attach sets the Authorization header.
func (b BearerSession) Attach(headers, _ map[string]string) {
	if b.AccessToken != "" {
		headers["Authorization"] = "Bearer " + b.AccessToken
	}
}

// Expired reports whether now is at or past the access token's expiry. A
// session without an expiry never expires.
func (b BearerSession) Expired(now time.Time) bool {
	if b.AccessTokenExpiresAt == nil {
		return false
	}
	return !now.Before(*b.AccessTokenExpiresAt)
}

// NeedsRefresh reports whether the access token must be renewed before use.
func (b BearerSession) NeedsRefresh(now time.Time) bool {
	return b.AccessToken == "" || b.Expired(now)
}

// WithoutAccessToken returns a copy with the stale access token cleared.
func (b BearerSession) WithoutAccessToken() BearerSession {
	return BearerSession{AccessTokenExpiresAt: b.AccessTokenExpiresAt, RefreshToken: b.RefreshToken}
}

// SessionCookie is an opaque session cookie issued by a login exchange.
type SessionCookie struct {
	Value string
}

func (SessionCookie) credential() {}

// Attach sets the session cookie.
func (s SessionCookie) Attach(_, cookies map[string]string) {
	cookies[SessionCookieName] = s.Value
}

// SessionID is a caller-supplied session identifier.
type SessionID struct {
	Value string
}

func (SessionID) credential() {}

// Attach sets the session cookie.
func (s SessionID) Attach(_, cookies map[string]string) {
	cookies[SessionCookieName] = s.Value
}
