// Package prompt provides the prompt service client for the Liminal API:
// sensitive-data analysis, cleansing, hydration, and LLM submission.
package prompt

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/liminal-ai-security/liminal-sdk-go/internal/schema"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/transport"
	"github.com/liminal-ai-security/liminal-sdk-go/logger"
	"github.com/liminal-ai-security/liminal-sdk-go/thread"
)

// Requester sends authenticated requests.
type Requester interface {
	Do(ctx context.Context, req *transport.Request, out any) error
	Stream(ctx context.Context, req *transport.Request) (*transport.LineStream, error)
}

// Routes are the endpoint paths used by Client.
type Routes struct {
	Analyze string
	Cleanse string
	Hydrate string
	Submit  string
}

// DefaultRoutes returns the /api/v1 paths.
func DefaultRoutes() Routes {
	return Routes{
		Analyze: "/api/v1/prompts/analyze",
		Cleanse: "/api/v1/prompts/cleanse",
		Hydrate: "/api/v1/prompts/hydrate",
		Submit:  "/api/v1/prompts/submit",
	}
}

// WithDefaults fills empty paths from DefaultRoutes.
func (r Routes) WithDefaults() Routes {
	d := DefaultRoutes()
	if r.Analyze == "" {
		r.Analyze = d.Analyze
	}
	if r.Cleanse == "" {
		r.Cleanse = d.Cleanse
	}
	if r.Hydrate == "" {
		r.Hydrate = d.Hydrate
	}
	if r.Submit == "" {
		r.Submit = d.Submit
	}
	return r
}

// Client provides access to the prompt endpoints.
type Client struct {
	r      Requester
	routes Routes
	source string
	log    *zap.Logger
}

// =============================================================================
// SDK Types
// =============================================================================

// Finding is one span of sensitive data detected in a prompt, with the policy
// that applies to its category.
type Finding struct {
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Origin        string  `json:"origin"`
	Score         float64 `json:"score"`
	ScoreCategory string  `json:"scoreCategory"`
	Text          string  `json:"text" validate:"required"`
	Type          string  `json:"type" validate:"required"`
	PolicyAction  string  `json:"policyAction"`
}

// AnalysisFindings is the result of Analyze.
type AnalysisFindings struct {
	Findings []Finding `json:"findings" validate:"required,dive"`
}

// CleansedToken locates a placeholder in cleansed text.
type CleansedToken struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	EntityType string `json:"entity_type" validate:"required"`
}

// CleanseData is the result of Cleanse.
type CleanseData struct {
	Items       []CleansedToken `json:"items" validate:"required,dive"`
	Text        string          `json:"text"`
	ItemsHashed []CleansedToken `json:"items_hashed" validate:"dive"`
	TextHashed  string          `json:"text_hashed"`
}

// HydratedToken locates restored text in hydrated output.
type HydratedToken struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	EntityType string `json:"entity_type" validate:"required"`
}

// HydrateData is the result of Hydrate.
type HydrateData struct {
	Items []HydratedToken `json:"items" validate:"required,dive"`
	Text  string          `json:"text"`
}

// ReidentifiedToken locates restored text in an LLM response.
type ReidentifiedToken struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	EntityType string `json:"entity_type" validate:"required"`
	Text       string `json:"text"`
}

// SubmitData is the full result of Submit.
type SubmitData struct {
	ThreadID                     int                        `json:"threadId" validate:"required"`
	ChatID                       int                        `json:"chatId" validate:"required"`
	InputText                    string                     `json:"inputText"`
	DeidentifiedInputTextData    CleanseData                `json:"deidentifiedInputTextData"`
	DeidentifiedContextHistory   []thread.DeidentifiedToken `json:"deidentifiedContextHistory" validate:"dive"`
	LLMModel                     string                     `json:"llmModel"`
	RawLLMResponseText           string                     `json:"rawLLMResponseText"`
	ReidentifiedLLMResponseText  string                     `json:"reidentifiedLLMResponseText"`
	ReidentifiedLLMResponseItems []ReidentifiedToken        `json:"reidentifiedLLMResponseItems" validate:"dive"`
}

// StreamChunk is one unit of a streamed LLM response. FinishReason is set on
// the final chunk.
type StreamChunk struct {
	Content      string  `json:"content"`
	FinishReason *string `json:"finish_reason"`
}

// Options are the optional parameters shared by the prompt endpoints.
type Options struct {
	// ThreadID targets an existing thread. Zero lets the server create one.
	ThreadID int
	// Findings from a previous Analyze call. When set, the server skips its
	// own analysis pass.
	Findings *AnalysisFindings
}

// Payload is the request body of the prompt endpoints.
type Payload struct {
	ModelInstanceID int       `json:"modelInstanceId,omitempty"`
	Source          string    `json:"source"`
	Text            string    `json:"text"`
	ThreadID        int       `json:"threadId,omitempty"`
	Findings        []Finding `json:"findings,omitempty"`
	IsStreaming     bool      `json:"isStreaming,omitempty"`
}

// =============================================================================
// Constructor / helpers
// =============================================================================

// NewClient creates a new prompt service client. source is echoed in every
// request body.
func NewClient(r Requester, routes Routes, source string, log *zap.Logger) *Client {
	if source == "" {
		source = transport.DefaultSource
	}
	return &Client{
		r:      r,
		routes: routes.WithDefaults(),
		source: source,
		log:    logger.OrNop(log).With(logger.Scope("prompt")),
	}
}

func (c *Client) payload(modelInstanceID int, text string, opts *Options) Payload {
	p := Payload{ModelInstanceID: modelInstanceID, Source: c.source, Text: text}
	if opts != nil {
		p.ThreadID = opts.ThreadID
		if opts.Findings != nil {
			p.Findings = opts.Findings.Findings
		}
	}
	return p
}

func (c *Client) post(ctx context.Context, path string, body Payload, out any) error {
	return c.r.Do(ctx, &transport.Request{Method: http.MethodPost, Path: path, Body: body}, schema.Data(out))
}

// =============================================================================
// Endpoints
// =============================================================================

// Analyze detects sensitive data in text.
// Server: POST /api/v1/prompts/analyze
func (c *Client) Analyze(ctx context.Context, modelInstanceID int, text string, opts *Options) (*AnalysisFindings, error) {
	body := c.payload(modelInstanceID, text, opts)
	body.Findings = nil

	var result AnalysisFindings
	if err := c.post(ctx, c.routes.Analyze, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cleanse replaces sensitive spans in text with typed placeholder tokens.
// Server: POST /api/v1/prompts/cleanse
func (c *Client) Cleanse(ctx context.Context, modelInstanceID int, text string, opts *Options) (*CleanseData, error) {
	var result CleanseData
	if err := c.post(ctx, c.routes.Cleanse, c.payload(modelInstanceID, text, opts), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Hydrate restores the original text behind placeholder tokens.
// Server: POST /api/v1/prompts/hydrate
func (c *Client) Hydrate(ctx context.Context, modelInstanceID int, text string, opts *Options) (*HydrateData, error) {
	body := c.payload(modelInstanceID, text, opts)
	body.Findings = nil

	var result HydrateData
	if err := c.post(ctx, c.routes.Hydrate, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Submit sends text to the thread's LLM and waits for the full response.
// Server: POST /api/v1/prompts/submit
func (c *Client) Submit(ctx context.Context, modelInstanceID int, text string, opts *Options) (*SubmitData, error) {
	var result SubmitData
	if err := c.post(ctx, c.routes.Submit, c.payload(modelInstanceID, text, opts), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stream sends text to the thread's LLM and streams the response.
// Server: POST /api/v1/prompts/submit with isStreaming → line-delimited JSON
func (c *Client) Stream(ctx context.Context, modelInstanceID int, text string, opts *Options) (*Stream, error) {
	body := c.payload(modelInstanceID, text, opts)
	body.IsStreaming = true

	lines, err := c.r.Stream(ctx, &transport.Request{Method: http.MethodPost, Path: c.routes.Submit, Body: body})
	if err != nil {
		return nil, err
	}
	return newStream(lines, c.log), nil
}
