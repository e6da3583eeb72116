// Package llm provides the model instance service client for the Liminal API.
package llm

import (
	"context"
	"net/http"
	"time"

	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/schema"
	"github.com/liminal-ai-security/liminal-sdk-go/internal/transport"
)

// Requester sends authenticated requests.
type Requester interface {
	Do(ctx context.Context, req *transport.Request, out any) error
}

// Routes are the endpoint paths used by Client.
type Routes struct {
	ModelInstances string
}

// DefaultRoutes returns the /api/v1 paths.
func DefaultRoutes() Routes {
	return Routes{ModelInstances: "/api/v1/model-instances"}
}

// WithDefaults fills empty paths from DefaultRoutes.
func (r Routes) WithDefaults() Routes {
	if r.ModelInstances == "" {
		r.ModelInstances = DefaultRoutes().ModelInstances
	}
	return r
}

// Client provides access to model instances.
type Client struct {
	r      Requester
	routes Routes
}

// ModelConnection binds a model instance to an LLM provider.
type ModelConnection struct {
	ID              int               `json:"id" validate:"required"`
	ModelInstanceID int               `json:"modelInstanceId" validate:"required"`
	Model           string            `json:"model" validate:"required"`
	ProviderKey     string            `json:"providerKey" validate:"required"`
	Params          map[string]string `json:"params"`
	APIKey          *string           `json:"apiKey,omitempty"`
	MaskedAPIKey    *string           `json:"maskedApiKey,omitempty"`
	CreatedAt       time.Time         `json:"createdAt" validate:"required"`
	UpdatedAt       time.Time         `json:"updatedAt" validate:"required"`
	DeletedAt       *time.Time        `json:"deletedAt,omitempty"`
}

// ModelInstance is a policy-scoped binding to an LLM provider connection.
type ModelInstance struct {
	ID              int              `json:"id" validate:"required"`
	PolicyGroupID   int              `json:"policyGroupId"`
	Name            string           `json:"name"`
	ModelConnection *ModelConnection `json:"modelConnection"`
	CreatedAt       time.Time        `json:"createdAt" validate:"required"`
	UpdatedAt       time.Time        `json:"updatedAt" validate:"required"`
	DeletedAt       *time.Time       `json:"deletedAt,omitempty"`
}

// NewClient creates a new model instance service client.
func NewClient(r Requester, routes Routes) *Client {
	return &Client{r: r, routes: routes.WithDefaults()}
}

// GetAvailableModelInstances lists the model instances the caller may use.
// Server: GET /api/v1/model-instances
func (c *Client) GetAvailableModelInstances(ctx context.Context) ([]ModelInstance, error) {
	var result []ModelInstance
	err := c.r.Do(ctx, &transport.Request{Method: http.MethodGet, Path: c.routes.ModelInstances}, schema.Data(&result))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetModelInstance returns the model instance called name. It fails with a
// ModelInstanceUnknownError when no instance has that name or the instance
// has no active model connection.
func (c *Client) GetModelInstance(ctx context.Context, name string) (*ModelInstance, error) {
	instances, err := c.GetAvailableModelInstances(ctx)
	if err != nil {
		return nil, err
	}

	for i := range instances {
		if instances[i].Name != name {
			continue
		}
		if instances[i].ModelConnection == nil {
			return nil, sdkerrors.ModelInstanceUnknown(name)
		}
		return &instances[i], nil
	}
	return nil, sdkerrors.ModelInstanceUnknown(name)
}
