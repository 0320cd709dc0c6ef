package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// ListAgents returns every agent visible to the organization.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL("/agents/list"), nil, &agents); err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	for i := range agents {
		if err := agents[i].validate(); err != nil {
			return nil, fmt.Errorf("listing agents: entry %d: %w", i, err)
		}
	}
	return agents, nil
}

// GetAgent fetches one agent. A missing agent yields an error for which
// IsNotFound is true.
func (c *Client) GetAgent(ctx context.Context, id string) (*Agent, error) {
	if id == "" {
		return nil, &APIError{Method: http.MethodGet, URL: c.apiURL("/agents/"), StatusCode: http.StatusNotFound, Message: "empty agent id"}
	}
	var agent Agent
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL("/agents/%s", url.PathEscape(id)), nil, &agent); err != nil {
		return nil, err
	}
	if err := agent.validate(); err != nil {
		return nil, err
	}
	return &agent, nil
}

// CreateAgent creates a new agent.
func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error) {
	if req.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if req.DeploymentType == "" {
		req.DeploymentType = DeploymentTypeContainer
	}
	var agent Agent
	if err := c.doJSON(ctx, http.MethodPost, c.apiURL("/agents"), req, &agent); err != nil {
		return nil, fmt.Errorf("creating agent %q: %w", req.Name, err)
	}
	if err := agent.validate(); err != nil {
		return nil, fmt.Errorf("creating agent %q: %w", req.Name, err)
	}
	return &agent, nil
}

// DeployAgent flips the agent's registry pointer to the latest upload.
func (c *Client) DeployAgent(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodPut, c.apiURL("/agents/%s/deploy", url.PathEscape(id)), nil, nil); err != nil {
		return fmt.Errorf("deploying agent %s: %w", id, err)
	}
	return nil
}

// StopDeployment stops the agent's running deployment. Stopping an agent
// that has nothing deployed succeeds with Stopped=false.
func (c *Client) StopDeployment(ctx context.Context, id string) (*StopResult, error) {
	res := StopResult{Stopped: true}
	err := c.doJSON(ctx, http.MethodDelete, c.registryURL("/agents/%s", url.PathEscape(id)), nil, &res)
	if IsNotFound(err) {
		return &StopResult{Stopped: false, Message: "no active deployment"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stopping deployment of %s: %w", id, err)
	}
	return &res, nil
}

// RestartDeployment restarts the agent's current deployment.
func (c *Client) RestartDeployment(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodPost, c.registryURL("/agents/%s/restart", url.PathEscape(id)), nil, nil); err != nil {
		return fmt.Errorf("restarting deployment of %s: %w", id, err)
	}
	return nil
}
