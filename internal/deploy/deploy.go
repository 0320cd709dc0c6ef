package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/xpander-ai/xpander-cli/internal/api"
	"github.com/xpander-ai/xpander-cli/internal/core"
	"github.com/xpander-ai/xpander-cli/internal/resolve"
)

// Deploy builds the project in req.Dir and ships it to the target agent,
// creating the agent when it does not exist. Steps run in order and the
// first failure aborts the rest; nothing is rolled back.
func (c *Controller) Deploy(ctx context.Context, req DeployRequest) error {
	dir, err := resolveDir(req.Dir)
	if err != nil {
		return err
	}
	empty, err := core.IsEmpty(dir)
	if err != nil {
		return fmt.Errorf("checking project directory: %w", err)
	}
	if empty {
		return fmt.Errorf("%w: %s has no files; create an agent project there first (a Dockerfile and %s)", ErrNotInitialized, dir, "xpander_handler.py")
	}
	req.Dir = dir

	s, err := c.open(req.Options, true)
	if err != nil {
		return err
	}
	if _, warnings, err := core.IsInitialized(dir); err == nil {
		for _, w := range warnings {
			fmt.Fprintf(c.out, "Warning: %s\n", w)
		}
	}

	agentID, err := c.targetAgent(ctx, s, req)
	if err != nil {
		return err
	}

	question := fmt.Sprintf("Deploy %s to agent %s?", dir, agentID)
	if agentID == "" {
		question = fmt.Sprintf("Deploy %s as a new agent?", dir)
	}
	if !req.SkipConfirm {
		ok, err := c.confirm(ctx, req.NonInteractive, question)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCancelled
		}
	}

	agent, err := c.getOrCreateAgent(ctx, s, req, agentID)
	if err != nil {
		return err
	}

	if err := c.stop(ctx, s, agent.ID); err != nil {
		return err
	}

	archive, err := s.backend.Builder.Build(ctx, dir, agent.ID, req.SkipLocalTest)
	if err != nil {
		return fmt.Errorf("building agent image: %w", err)
	}
	defer func() {
		if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("removing image archive", "path", archive, "error", err)
		}
	}()

	res, err := s.backend.Uploader.Upload(ctx, archive, agent.ID)
	if err != nil {
		return fmt.Errorf("uploading agent image: %w", err)
	}
	if res == nil {
		return fmt.Errorf("uploading agent image: no result from registry")
	}
	c.logger.Debug("upload finished", "agent", agent.ID, "chunks", res.Chunks, "bytes", res.BytesSent, "blake3", res.Digest)
	if !res.Complete {
		if err := s.backend.Agents.DeployAgent(ctx, agent.ID); err != nil {
			return fmt.Errorf("activating deployment: %w", err)
		}
	}
	fmt.Fprintf(c.out, "Deployed agent %q (%s)\n", agent.Name, agent.ID)

	if req.NonInteractive || c.prompter == nil {
		return nil
	}
	ok, err := c.prompter.Confirm(ctx, "Stream the agent's logs now?")
	if err != nil || !ok {
		return nil
	}
	return c.follow(ctx, s, agent.ID)
}

// targetAgent picks the agent to deploy to. An ID persisted in the project
// wins over the command line; then the command line reference; then an
// interactive pick that also offers a new agent. "" means a new agent must
// be created.
func (c *Controller) targetAgent(ctx context.Context, s *session, req DeployRequest) (string, error) {
	if id := s.project.AgentID; id != "" {
		if req.Agent != "" && !strings.EqualFold(req.Agent, id) {
			fmt.Fprintf(c.out, "Warning: using agent %s from %s; ignoring %q\n", id, core.ProjectEnvFile, req.Agent)
		}
		return id, nil
	}

	if req.Agent == "" && req.NonInteractive {
		return "", nil
	}

	id, err := s.backend.Resolver.Resolve(ctx, req.Agent, resolve.Options{Dir: s.dir, OfferNew: req.Agent == ""})
	if errors.Is(err, resolve.ErrAgentNotFound) {
		c.logger.Debug("agent reference did not resolve, will create", "ref", req.Agent)
		return "", nil
	}
	return id, err
}

// getOrCreateAgent fetches the agent, creating it when agentID is empty or
// unknown remotely. The resulting ID is persisted in the project.
func (c *Controller) getOrCreateAgent(ctx context.Context, s *session, req DeployRequest, agentID string) (*api.Agent, error) {
	if agentID != "" {
		agent, err := s.backend.Agents.GetAgent(ctx, agentID)
		switch {
		case err == nil:
			return agent, c.persistAgentID(s, agent.ID)
		case !api.IsNotFound(err):
			return nil, fmt.Errorf("fetching agent %s: %w", agentID, err)
		}
	}

	name := newAgentName(req.Agent, s.dir)
	question := fmt.Sprintf("Create a new agent named %q?", name)
	if agentID != "" {
		question = fmt.Sprintf("Agent %s does not exist. Create a new agent named %q?", agentID, name)
	}
	ok, err := c.confirm(ctx, req.NonInteractive, question)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancelled
	}

	agent, err := s.backend.Agents.CreateAgent(ctx, api.CreateAgentRequest{Name: name, DeploymentType: api.DeploymentTypeContainer})
	if err != nil {
		return nil, fmt.Errorf("creating agent %q: %w", name, err)
	}
	fmt.Fprintf(c.out, "Created agent %q (%s)\n", agent.Name, agent.ID)
	return agent, c.persistAgentID(s, agent.ID)
}

func (c *Controller) persistAgentID(s *session, id string) error {
	if s.project.AgentID == id {
		return nil
	}
	if err := core.WriteProjectConfig(s.dir, core.ProjectConfig{AgentID: id}); err != nil {
		return fmt.Errorf("saving agent ID: %w", err)
	}
	s.project.AgentID = id
	c.logger.Debug("persisted agent id", "dir", s.dir, "agent", id)
	return nil
}

// newAgentName is the reference the user typed when it is a name, otherwise
// the project directory's base name.
func newAgentName(ref, dir string) string {
	if ref != "" && uuid.Validate(ref) != nil {
		return ref
	}
	return core.DefaultAgentName(filepath.Clean(dir))
}
