package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/liminal-ai-security/liminal-sdk-go/auth"
	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/transport"
)

// AuthenticateFromProvider exchanges a provider access token for Liminal
// credentials. A nil p reuses the provider of the previous exchange.
func (s *Session) AuthenticateFromProvider(ctx context.Context, p auth.Provider) (auth.Credential, error) {
	if p == nil {
		p = s.store.Provider()
	}
	if p == nil {
		return nil, sdkerrors.Auth("No valid auth provider provided")
	}
	return s.coord.Run(ctx, func(ctx context.Context) (auth.Credential, bool, error) {
		return s.exchangeProvider(ctx, p)
	})
}

// AuthenticateFromSessionID validates a session identifier against the
// current-user endpoint and adopts it. An empty id revalidates the stored one.
func (s *Session) AuthenticateFromSessionID(ctx context.Context, id string) (auth.Credential, error) {
	if id == "" {
		if cur, ok := s.store.Load().(auth.SessionID); ok {
			id = cur.Value
		}
	}
	if id == "" {
		return nil, sdkerrors.Auth("No valid session-id token provided")
	}
	return s.coord.Run(ctx, func(ctx context.Context) (auth.Credential, bool, error) {
		value, err := s.validateSession(ctx, id)
		if err != nil {
			return nil, false, err
		}
		cred := auth.SessionID{Value: value}
		s.store.Set(cred)
		return cred, true, nil
	})
}

// AuthenticateFromSessionCookie revalidates a session cookie and adopts it.
// An empty cookie revalidates the stored one.
func (s *Session) AuthenticateFromSessionCookie(ctx context.Context, cookie string) (auth.Credential, error) {
	if cookie == "" {
		if cur, ok := s.store.Load().(auth.SessionCookie); ok {
			cookie = cur.Value
		}
	}
	if cookie == "" {
		return nil, sdkerrors.Auth("No valid session token provided")
	}
	return s.coord.Run(ctx, func(ctx context.Context) (auth.Credential, bool, error) {
		value, err := s.validateSession(ctx, cookie)
		if err != nil {
			return nil, false, err
		}
		cred := auth.SessionCookie{Value: value}
		s.store.Set(cred)
		return cred, true, nil
	})
}

// AuthenticateFromToken logs in through the test-automation endpoint with a
// pre-shared API key. An empty key reuses the key of the previous login.
func (s *Session) AuthenticateFromToken(ctx context.Context, key string) (auth.Credential, error) {
	if key == "" {
		key = s.store.APIKey()
	}
	if key == "" {
		return nil, sdkerrors.Auth("No valid token provided")
	}
	return s.coord.Run(ctx, func(ctx context.Context) (auth.Credential, bool, error) {
		resp, err := s.exec.Send(ctx, &transport.Request{
			Method:  http.MethodPost,
			Path:    s.routes.TestAutomationLogin,
			Headers: map[string]string{auth.TestAutomationHeader: key},
		})
		if err != nil {
			return nil, false, sdkerrors.AsAuth(err)
		}
		cred, err := s.credentialFrom(resp, "")
		if err != nil {
			return nil, false, err
		}
		s.store.SetAPIKey(key)
		s.store.Set(cred)
		return cred, true, nil
	})
}

// AuthenticateFromRefreshToken exchanges a refresh token for a new
// access/refresh pair. An empty token uses the stored one.
func (s *Session) AuthenticateFromRefreshToken(ctx context.Context, token string) (auth.Credential, error) {
	if token == "" {
		if cur, ok := s.store.Load().(auth.BearerSession); ok {
			token = cur.RefreshToken
		}
	}
	if token == "" {
		return nil, sdkerrors.Auth("No valid refresh token provided")
	}
	return s.coord.Run(ctx, func(ctx context.Context) (auth.Credential, bool, error) {
		return s.refreshToken(ctx, token)
	})
}

func (s *Session) exchangeProvider(ctx context.Context, p auth.Provider) (auth.Credential, bool, error) {
	token, err := p.AccessToken(ctx)
	if err != nil {
		return nil, false, sdkerrors.AsAuth(err)
	}
	resp, err := s.exec.Send(ctx, &transport.Request{
		Method:  http.MethodGet,
		Path:    s.routes.OAuthAccessToken,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, false, sdkerrors.AsAuth(err)
	}
	cred, err := s.credentialFrom(resp, "")
	if err != nil {
		return nil, false, err
	}
	s.store.SetProvider(p)
	s.store.Set(cred)
	return cred, true, nil
}

func (s *Session) refreshToken(ctx context.Context, token string) (auth.Credential, bool, error) {
	resp, err := s.exec.Send(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    s.routes.RefreshToken,
		Cookies: map[string]string{auth.RefreshTokenCookie: token},
	})
	if err != nil {
		return nil, false, sdkerrors.AsAuth(err)
	}
	cred, err := bearerFrom(resp, token)
	if err != nil {
		return nil, false, err
	}
	s.store.Set(cred)
	return cred, true, nil
}

// validateSession calls the current-user endpoint with value as the session
// cookie. A rotated session cookie in the response replaces value.
func (s *Session) validateSession(ctx context.Context, value string) (string, error) {
	resp, err := s.exec.Send(ctx, &transport.Request{
		Method:  http.MethodGet,
		Path:    s.routes.UsersMe,
		Cookies: map[string]string{auth.SessionCookieName: value},
	})
	if err != nil {
		return "", sdkerrors.AsAuth(err)
	}
	if rotated, ok := resp.Cookie(auth.SessionCookieName); ok && rotated != "" {
		return rotated, nil
	}
	return value, nil
}

// credentialFrom extracts the artifact the configured scheme issues.
func (s *Session) credentialFrom(resp *transport.Response, fallbackRefresh string) (auth.Credential, error) {
	if s.scheme == auth.SchemeSessionCookie {
		v, ok := resp.Cookie(auth.SessionCookieName)
		if !ok || v == "" {
			return nil, sdkerrors.Auth("No session cookie in authentication response from %s", resp.URL)
		}
		return auth.SessionCookie{Value: v}, nil
	}
	b, err := bearerFrom(resp, fallbackRefresh)
	if err != nil {
		return nil, err
	}
	return b, nil
}

type tokenBody struct {
	AccessToken          string          `json:"accessToken"`
	AccessTokenExpiresAt json.RawMessage `json:"accessTokenExpiresAt"`
	RefreshToken         string          `json:"refreshToken"`
}

// bearerFrom reads the token pair from Set-Cookie, falling back to a JSON
// body. The refresh token is kept when the server does not rotate it.
func bearerFrom(resp *transport.Response, fallbackRefresh string) (auth.BearerSession, error) {
	var body tokenBody
	_ = json.Unmarshal(resp.Body, &body)

	access, _ := resp.Cookie(auth.AccessTokenCookie)
	if access == "" {
		access = body.AccessToken
	}
	if access == "" {
		return auth.BearerSession{}, sdkerrors.Auth("No access token in authentication response from %s", resp.URL)
	}

	rawExp, ok := resp.Cookie(auth.AccessTokenExpiresCookie)
	if !ok {
		rawExp = rawJSONValue(body.AccessTokenExpiresAt)
	}
	exp := parseExpiry(rawExp)
	if exp == nil {
		exp, _ = auth.ExpiryFromJWT(access)
	}

	refresh, _ := resp.Cookie(auth.RefreshTokenCookie)
	if refresh == "" {
		refresh = body.RefreshToken
	}
	if refresh == "" {
		refresh = fallbackRefresh
	}

	return auth.BearerSession{
		AccessToken:          access,
		AccessTokenExpiresAt: exp,
		RefreshToken:         refresh,
	}, nil
}

func rawJSONValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseExpiry accepts epoch milliseconds or an RFC 3339 timestamp. Zero
// means the deployment did not report an expiry.
func parseExpiry(v string) *time.Time {
	if v == "" || v == "null" {
		return nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms <= 0 {
			return nil
		}
		t := time.UnixMilli(ms)
		return &t
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t
	}
	return nil
}
