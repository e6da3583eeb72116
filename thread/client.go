// Package thread provides the thread service client for the Liminal API.
package thread

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/liminal-ai-security/liminal-sdk-go/internal/schema"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/transport"
	"github.com/liminal-ai-security/liminal-sdk-go/llm"
)

// Requester sends authenticated requests.
type Requester interface {
	Do(ctx context.Context, req *transport.Request, out any) error
}

// Routes are the endpoint paths used by Client.
type Routes struct {
	Threads        string
	ContextHistory string
}

// DefaultRoutes returns the /api/v1 paths.
func DefaultRoutes() Routes {
	return Routes{
		Threads:        "/api/v1/threads",
		ContextHistory: "/api/v1/sdk/get_context_history",
	}
}

// WithDefaults fills empty paths from DefaultRoutes.
func (r Routes) WithDefaults() Routes {
	d := DefaultRoutes()
	if r.Threads == "" {
		r.Threads = d.Threads
	}
	if r.ContextHistory == "" {
		r.ContextHistory = d.ContextHistory
	}
	return r
}

// Client provides access to threads.
type Client struct {
	r      Requester
	routes Routes
}

// Type distinguishes ordinary threads from model training threads.
type Type string

const (
	TypeDefault Type = "default"
	TypeTrainer Type = "trainer"
)

// Thread binds a model instance to a sequence of prompts and responses.
type Thread struct {
	ID              int                `json:"id" validate:"required"`
	ModelInstanceID int                `json:"modelInstanceId" validate:"required"`
	UserID          int                `json:"userId"`
	Name            string             `json:"name"`
	Source          string             `json:"source"`
	Type            Type               `json:"type"`
	ModelInstance   *llm.ModelInstance `json:"modelInstance,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" validate:"required"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	DeletedAt       *time.Time         `json:"deletedAt,omitempty"`
}

// DeidentifiedToken maps a placeholder token in a thread's history to its
// hashed form.
type DeidentifiedToken struct {
	DeidText string `json:"deidText" validate:"required"`
	HashText string `json:"hashText" validate:"required"`
}

// CreateRequest is the request body for creating a thread.
type CreateRequest struct {
	Name            string `json:"name"`
	ModelInstanceID int    `json:"modelInstanceId"`
}

type contextHistoryRequest struct {
	ThreadID int `json:"threadId"`
}

// NewClient creates a new thread service client.
func NewClient(r Requester, routes Routes) *Client {
	return &Client{r: r, routes: routes.WithDefaults()}
}

// Create creates a thread bound to a model instance.
// Server: POST /api/v1/threads
func (c *Client) Create(ctx context.Context, modelInstanceID int, name string) (*Thread, error) {
	var result Thread
	req := &transport.Request{
		Method: http.MethodPost,
		Path:   c.routes.Threads,
		Body:   CreateRequest{Name: name, ModelInstanceID: modelInstanceID},
	}
	if err := c.r.Do(ctx, req, schema.Data(&result)); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAvailable lists the caller's threads.
// Server: GET /api/v1/threads
func (c *Client) GetAvailable(ctx context.Context) ([]Thread, error) {
	var result []Thread
	if err := c.r.Do(ctx, &transport.Request{Method: http.MethodGet, Path: c.routes.Threads}, schema.Data(&result)); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID retrieves a thread.
// Server: GET /api/v1/threads/:id
func (c *Client) GetByID(ctx context.Context, id int) (*Thread, error) {
	var result Thread
	req := &transport.Request{Method: http.MethodGet, Path: c.routes.Threads + "/" + strconv.Itoa(id)}
	if err := c.r.Do(ctx, req, schema.Data(&result)); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDeidentifiedContextHistory returns the placeholder tokens accumulated
// in a thread.
// Server: POST /api/v1/sdk/get_context_history
func (c *Client) GetDeidentifiedContextHistory(ctx context.Context, id int) ([]DeidentifiedToken, error) {
	var result []DeidentifiedToken
	req := &transport.Request{
		Method: http.MethodPost,
		Path:   c.routes.ContextHistory,
		Body:   contextHistoryRequest{ThreadID: id},
	}
	if err := c.r.Do(ctx, req, schema.Data(&result)); err != nil {
		return nil, err
	}
	return result, nil
}
