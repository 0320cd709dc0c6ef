// Package api is the HTTP client for the Xpander.ai platform: agent listing
// and CRUD, deployment control, chunked image upload and log retrieval.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xpander-ai/xpander-cli/internal/core"
	"github.com/xpander-ai/xpander-cli/internal/logger"
)

// maxResponseBody is the maximum response body size read from the API.
const maxResponseBody = 10 * 1024 * 1024

// Header names understood by the platform.
const (
	headerAPIKey         = "x-api-key"
	headerOrganizationID = "x-organization-id"
)

// Endpoints holds the base URLs of the two platform services the CLI talks to.
type Endpoints struct {
	API               string
	DeploymentManager string
}

// Production and staging endpoints.
var (
	ProductionEndpoints = Endpoints{
		API:               "https://api.xpander.ai/v1",
		DeploymentManager: "https://deployment-manager.xpander.ai",
	}
	StagingEndpoints = Endpoints{
		API:               "https://api.stg.xpander.ai/v1",
		DeploymentManager: "https://deployment-manager.stg.xpander.ai",
	}
)

// EndpointsFor returns the staging or production endpoints.
func EndpointsFor(staging bool) Endpoints {
	if staging {
		return StagingEndpoints
	}
	return ProductionEndpoints
}

// Client talks to the platform on behalf of one credential pair.
type Client struct {
	http      *http.Client
	endpoints Endpoints
	creds     core.Credentials
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client. Requests carry no client-side timeout; callers
// bound them with a context where needed.
func NewClient(creds core.Credentials, endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		endpoints: endpoints,
		creds:     creds,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.endpoints.API = strings.TrimRight(c.endpoints.API, "/")
	c.endpoints.DeploymentManager = strings.TrimRight(c.endpoints.DeploymentManager, "/")
	return c
}

// OrganizationID returns the organization the client is scoped to.
func (c *Client) OrganizationID() string {
	return c.creds.OrganizationID
}

func (c *Client) apiURL(format string, args ...any) string {
	return c.endpoints.API + fmt.Sprintf(format, args...)
}

func (c *Client) registryURL(format string, args ...any) string {
	return c.endpoints.DeploymentManager + "/" + c.creds.OrganizationID + "/registry" + fmt.Sprintf(format, args...)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerAPIKey, c.creds.APIKey)
	if c.creds.OrganizationID != "" {
		req.Header.Set(headerOrganizationID, c.creds.OrganizationID)
	}
	return req, nil
}

// doJSON sends in (if non-nil) as JSON and decodes the response into out
// (if non-nil). Non-2xx responses become *APIError.
func (c *Client) doJSON(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.send(req, out)
}

// send executes req and decodes a JSON response into out.
func (c *Client) send(req *http.Request, out any) error {
	c.logger.Debug("api request", "method", req.Method, "url", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("api response", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "bytes", len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(req.Method, req.URL.String(), resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response from %s %s: %w", req.Method, req.URL, err)
	}
	return nil
}
