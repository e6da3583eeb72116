package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
)

func TestSend_BuildsRequest(t *testing.T) {
	var got *http.Request
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := New(Options{BaseURL: srv.URL + "/", Source: "sdk-test"})
	resp, err := e.Send(context.Background(), &Request{
		Method:  http.MethodPost,
		Path:    "api/v1/threads",
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Cookies: map[string]string{"refreshToken": "rt"},
		Query:   map[string]string{"limit": "5"},
		Body:    map[string]any{"name": "My thread"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/v1/threads", got.URL.Path)
	assert.Equal(t, "sdk-test", got.URL.Query().Get("source"))
	assert.Equal(t, "5", got.URL.Query().Get("limit"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	assert.Equal(t, DefaultUserAgent, got.Header.Get("User-Agent"))
	assert.NotEmpty(t, got.Header.Get(RequestIDHeader))
	c, err := got.Cookie("refreshToken")
	require.NoError(t, err)
	assert.Equal(t, "rt", c.Value)
	assert.Equal(t, "My thread", body["name"])

	assert.Equal(t, srv.URL+"/api/v1/threads", resp.URL)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	v, ok := resp.Cookie("session")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
	_, ok = resp.Cookie("missing")
	assert.False(t, ok)
}

func TestSend_DefaultSource(t *testing.T) {
	var source string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source = r.URL.Query().Get("source")
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).Send(context.Background(), &Request{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultSource, source)
}

func TestSend_OmitSource(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
	}))
	defer srv.Close()

	e := New(Options{BaseURL: srv.URL, OmitSource: true})
	_, err := e.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/x", Query: map[string]string{"a": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "a=1", query)
}

func TestSend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not Found"))
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).Send(context.Background(), &Request{Method: http.MethodGet, Path: "/foobar"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerrors.ErrRequest)
	assert.True(t, sdkerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Not Found")
	assert.Contains(t, err.Error(), srv.URL+"/foobar")
}

func TestSend_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Options{BaseURL: url}).Send(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerrors.ErrRequest)
}

func TestSend_SharedClientIsNotClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	hc := &http.Client{Timeout: 5 * time.Second}
	e := New(Options{BaseURL: srv.URL, HTTPClient: hc})
	for i := 0; i < 3; i++ {
		_, err := e.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
		require.NoError(t, err)
	}

	e.Close()
	_, err := e.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, sdkerrors.ErrRequest)

	// The caller's client remains usable.
	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestSend_RateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	e := New(Options{BaseURL: srv.URL, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})
	_, err := e.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.Send(ctx, &Request{Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, sdkerrors.ErrRequest)
}

func TestRequestClone(t *testing.T) {
	r := &Request{Method: "GET", Path: "/", Headers: map[string]string{"a": "1"}}
	c := r.Clone()
	c.Headers["b"] = "2"
	c.Cookies["session"] = "x"

	assert.Len(t, r.Headers, 1)
	assert.Nil(t, r.Cookies)
}

func TestStream_YieldsLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, "{\"content\":\"part %d\"}\n", i)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	s, err := New(Options{BaseURL: srv.URL}).Stream(context.Background(), &Request{Method: http.MethodPost, Path: "/api/v1/prompts/submit", Body: map[string]any{"isStreaming": true}})
	require.NoError(t, err)
	defer s.Close()

	var lines []string
	for s.Next() {
		lines = append(lines, s.Text())
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{
		`{"content":"part 0"}`,
		`{"content":"part 1"}`,
		`{"content":"part 2"}`,
	}, lines)
	assert.False(t, s.Next())
}

func TestStream_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"session expired"}`))
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL}).Stream(context.Background(), &Request{Method: http.MethodPost, Path: "/s"})
	require.Error(t, err)
	assert.True(t, sdkerrors.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "session expired")
}

func TestStream_CloseStopsIteration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "first")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	s, err := New(Options{BaseURL: srv.URL}).Stream(context.Background(), &Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)

	require.True(t, s.Next())
	assert.Equal(t, "first", s.Text())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
}
