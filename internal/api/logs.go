package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// OpenLogStream opens the Server-Sent-Events log feed of an agent. The
// caller must close the returned body.
func (c *Client) OpenLogStream(ctx context.Context, agentID string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.registryURL("/agents/%s/logs/stream", url.PathEscape(agentID)), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.logger.Debug("opening log stream", "agent", agentID, "url", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening log stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, newAPIError(req.Method, req.URL.String(), resp.StatusCode, body)
	}
	return resp.Body, nil
}

// FetchLogs returns the agent's current log buffer, one entry per line.
func (c *Client) FetchLogs(ctx context.Context, agentID string) ([]string, error) {
	var lines []string
	if err := c.doJSON(ctx, http.MethodGet, c.registryURL("/agents/%s/logs", url.PathEscape(agentID)), nil, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
