// Package testutil provides testing utilities for the Liminal SDK.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// MockServer provides a mock Liminal API server for testing SDK clients.
type MockServer struct {
	*httptest.Server
	t *testing.T

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
}

// NewMockServer creates a new mock server. It is closed when the test ends.
func NewMockServer(t *testing.T) *MockServer {
	ms := &MockServer{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", ms.handleRequest)

	ms.Server = httptest.NewServer(mux)
	t.Cleanup(ms.Close)
	return ms
}

// On registers a handler for a specific method and path.
func (ms *MockServer) On(method, path string, handler http.HandlerFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handlers[method+" "+path] = handler
}

// OnJSON registers a handler that returns JSON for a specific method and path.
func (ms *MockServer) OnJSON(method, path string, statusCode int, response any) {
	ms.On(method, path, func(w http.ResponseWriter, r *http.Request) {
		JSONResponse(ms.t, w, statusCode, response)
	})
}

// OnData registers a handler that returns response in a {"data": ...}
// envelope.
func (ms *MockServer) OnData(method, path string, response any) {
	ms.OnJSON(method, path, http.StatusOK, map[string]any{"data": response})
}

// OnText registers a handler that returns a plain-text body.
func (ms *MockServer) OnText(method, path string, statusCode int, body string) {
	ms.On(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body))
	})
}

// Hits reports how many requests reached method and path.
func (ms *MockServer) Hits(method, path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.hits[method+" "+path]
}

// handleRequest routes requests to registered handlers.
func (ms *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	ms.mu.Lock()
	ms.hits[key]++
	handler, ok := ms.handlers[key]
	ms.mu.Unlock()

	if !ok {
		ms.t.Logf("no handler registered for %s", key)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not Found"))
		return
	}
	handler(w, r)
}

// Close closes the mock server.
func (ms *MockServer) Close() {
	ms.Server.Close()
}

// SetTokenCookies writes the Set-Cookie headers of a bearer login or refresh
// response. A zero expiresAt writes the epoch-0 value some deployments send.
func SetTokenCookies(w http.ResponseWriter, accessToken string, expiresAt time.Time, refreshToken string) {
	ms := int64(0)
	if !expiresAt.IsZero() {
		ms = expiresAt.UnixMilli()
	}
	http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: accessToken})
	http.SetCookie(w, &http.Cookie{Name: "accessTokenExpiresAt", Value: strconv.FormatInt(ms, 10)})
	if refreshToken != "" {
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: refreshToken})
	}
}

// SetSessionCookie writes the Set-Cookie header of a session login response.
func SetSessionCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{Name: "session", Value: value})
}

// RequestCookie returns the named request cookie, or "".
func RequestCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// AssertHeader asserts that a request header has the expected value.
func AssertHeader(t *testing.T, r *http.Request, key, expected string) {
	t.Helper()
	actual := r.Header.Get(key)
	if actual != expected {
		t.Errorf("expected header %s=%q, got %q", key, expected, actual)
	}
}

// AssertCookie asserts that a request cookie has the expected value.
func AssertCookie(t *testing.T, r *http.Request, name, expected string) {
	t.Helper()
	if actual := RequestCookie(r, name); actual != expected {
		t.Errorf("expected cookie %s=%q, got %q", name, expected, actual)
	}
}

// AssertMethod asserts that the request method matches expected.
func AssertMethod(t *testing.T, r *http.Request, expected string) {
	t.Helper()
	if r.Method != expected {
		t.Errorf("expected method %s, got %s", expected, r.Method)
	}
}

// AssertJSONBody decodes the request body and compares it to expected.
func AssertJSONBody(t *testing.T, r *http.Request, expected any) {
	t.Helper()
	var actual any
	if err := json.NewDecoder(r.Body).Decode(&actual); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}

	expectedJSON, _ := json.Marshal(expected)
	actualJSON, _ := json.Marshal(actual)

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("expected body %s, got %s", string(expectedJSON), string(actualJSON))
	}
}

// DecodeJSONBody decodes the request body into a generic map.
func DecodeJSONBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("failed to decode request body: %v", err)
	}
	return body
}

// JSONResponse writes a JSON response to the response writer.
func JSONResponse(t *testing.T, w http.ResponseWriter, statusCode int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		t.Errorf("failed to encode JSON response: %v", err)
	}
}

// StreamLines writes lines one at a time, flushing after each.
func StreamLines(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}
