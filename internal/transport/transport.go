// Package transport sends single requests to the Liminal API.
package transport

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
	"github.com/liminal-ai-security/liminal-sdk-go/logger"
)

const (
	// DefaultTimeout bounds buffered requests on SDK-owned clients.
	DefaultTimeout = 60 * time.Second
	// DefaultSource identifies this SDK in the source query parameter.
	DefaultSource = "sdk"
	// DefaultUserAgent is sent on every request.
	DefaultUserAgent = "liminal-sdk-go"

	// RequestIDHeader correlates client and server logs.
	RequestIDHeader = "X-Request-ID"
)

// Request describes one call relative to the server root.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Cookies map[string]string
	Query   map[string]string
	Body    any
}

// Clone returns a copy whose maps may be modified independently.
func (r *Request) Clone() *Request {
	out := *r
	out.Headers = cloneMap(r.Headers)
	out.Cookies = cloneMap(r.Cookies)
	out.Query = cloneMap(r.Query)
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Response is a fully buffered 2xx response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
}

// Cookie returns the value of the named Set-Cookie entry.
func (r *Response) Cookie(name string) (string, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Options configures an Executor.
type Options struct {
	BaseURL string
	// HTTPClient is shared with the caller and never closed by the Executor.
	// When nil, every call opens and closes its own client.
	HTTPClient *http.Client
	Timeout    time.Duration
	Source     string
	// OmitSource drops the source query parameter for deployments that
	// reject it.
	OmitSource bool
	UserAgent  string
	Limiter    *rate.Limiter
	Logger     *zap.Logger
}

// Executor builds and sends requests.
type Executor struct {
	base      string
	shared    *resty.Client
	timeout   time.Duration
	source    string
	omit      bool
	userAgent string
	limiter   *rate.Limiter
	log       *zap.Logger
	closed    atomic.Bool
}

// New creates an Executor.
func New(opts Options) *Executor {
	e := &Executor{
		base:      strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		source:    opts.Source,
		omit:      opts.OmitSource,
		userAgent: opts.UserAgent,
		limiter:   opts.Limiter,
		log:       logger.OrNop(opts.Logger).With(logger.Scope("transport")),
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.source == "" {
		e.source = DefaultSource
	}
	if e.userAgent == "" {
		e.userAgent = DefaultUserAgent
	}
	if opts.HTTPClient != nil {
		e.shared = resty.NewWithClient(opts.HTTPClient).SetLogger(e.log.Sugar())
	}
	return e
}

// URL returns the absolute URL for path.
func (e *Executor) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return e.base + path
}

// Close marks the executor closed. A caller-supplied HTTP client is left
// untouched.
func (e *Executor) Close() {
	e.closed.Store(true)
}

// client returns the resty client for one call and its release function.
func (e *Executor) client(timeout time.Duration) (*resty.Client, func()) {
	if e.shared != nil {
		return e.shared, func() {}
	}
	c := resty.New().SetLogger(e.log.Sugar()).SetTimeout(timeout)
	return c, func() { c.GetClient().CloseIdleConnections() }
}

func (e *Executor) prepare(ctx context.Context, c *resty.Client, req *Request) (*resty.Request, string, string, error) {
	if e.closed.Load() {
		return nil, "", "", sdkerrors.Request("Client is closed")
	}
	url := e.URL(req.Path)
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, url, "", sdkerrors.Wrap(sdkerrors.KindRequest, err, "Error while sending request to %s: %v", url, err)
		}
	}

	id := uuid.NewString()
	r := c.R().
		SetContext(ctx).
		SetHeader("User-Agent", e.userAgent).
		SetHeader(RequestIDHeader, id).
		SetHeaders(req.Headers).
		SetCookies(cookies(req.Cookies)).
		SetQueryParams(req.Query)
	if !e.omit {
		r.SetQueryParam("source", e.source)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}
	return r, url, id, nil
}

// Send executes req and buffers the response. Non-2xx statuses become a
// RequestError carrying the server's detail.
func (e *Executor) Send(ctx context.Context, req *Request) (*Response, error) {
	c, release := e.client(e.timeout)
	defer release()

	r, url, id, err := e.prepare(ctx, c, req)
	if err != nil {
		return nil, err
	}

	e.log.Debug("sending request",
		zap.String("method", req.Method),
		zap.String("url", url),
		zap.String("request_id", id))

	resp, err := r.Execute(req.Method, url)
	if err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.KindRequest, err, "Error while sending request to %s: %v", url, err)
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, sdkerrors.ParseErrorResponse(url, resp.StatusCode(), resp.Body())
	}

	e.log.Debug("received response",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode()),
		zap.Int("bytes", len(resp.Body())),
		zap.String("request_id", id))

	return &Response{
		URL:        url,
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Cookies:    resp.Cookies(),
		Body:       resp.Body(),
	}, nil
}

func cookies(m map[string]string) []*http.Cookie {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		out = append(out, &http.Cookie{Name: name, Value: m[name]})
	}
	return out
}
