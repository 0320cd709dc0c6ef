// Package deploy orchestrates the deployment of a local agent project:
// credentials, agent resolution, stop, build, upload and log follow-up.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/xpander-ai/xpander-cli/internal/api"
	"github.com/xpander-ai/xpander-cli/internal/core"
	"github.com/xpander-ai/xpander-cli/internal/logger"
	"github.com/xpander-ai/xpander-cli/internal/resolve"
)

var (
	// ErrCancelled is returned when the user declines a confirmation. It is
	// a clean exit, not a failure.
	ErrCancelled = errors.New("cancelled")

	// ErrNotInitialized is returned when the project directory holds nothing
	// to deploy.
	ErrNotInitialized = errors.New("project directory is empty")

	// ErrNoCredentials is returned when neither the project nor a profile
	// supplies an API key and organization ID.
	ErrNoCredentials = errors.New("no credentials configured")
)

// AgentService is the remote agent API the controller drives.
type AgentService interface {
	GetAgent(ctx context.Context, id string) (*api.Agent, error)
	CreateAgent(ctx context.Context, req api.CreateAgentRequest) (*api.Agent, error)
	DeployAgent(ctx context.Context, id string) error
	StopDeployment(ctx context.Context, id string) (*api.StopResult, error)
	RestartDeployment(ctx context.Context, id string) error
}

// AgentResolver maps a user reference to an agent ID.
type AgentResolver interface {
	Resolve(ctx context.Context, input string, opts resolve.Options) (string, error)
}

// ImageBuilder produces an upload-ready archive for a project.
type ImageBuilder interface {
	Build(ctx context.Context, dir, agentID string, skipLocalTest bool) (string, error)
}

// ArchiveUploader sends an archive to the registry.
type ArchiveUploader interface {
	Upload(ctx context.Context, path, agentID string) (*api.UploadResult, error)
}

// LogFollower streams an agent's logs until ctx is cancelled.
type LogFollower interface {
	Stream(ctx context.Context, agentID string) error
}

// Prompter asks the user yes/no questions.
type Prompter interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// CredentialSource supplies profile credentials.
type CredentialSource interface {
	Resolve(name string) (core.Profile, error)
}

// Backend bundles the collaborators bound to one set of credentials.
type Backend struct {
	Agents   AgentService
	Resolver AgentResolver
	Builder  ImageBuilder
	Uploader ArchiveUploader
	Logs     LogFollower
}

// BackendFactory builds a Backend once the effective credentials are known.
type BackendFactory func(creds core.Credentials) (*Backend, error)

// Options are the per-invocation inputs shared by every operation.
type Options struct {
	// Agent is the optional agent ID or name given on the command line.
	Agent string
	// Dir is the project directory. Defaults to the working directory.
	Dir string
	// Profile names the credential profile. When ForceProfile is set the
	// profile's credentials win over the project's own.
	Profile      string
	ForceProfile bool
	// NonInteractive suppresses every prompt and picks defaults instead.
	NonInteractive bool
}

// DeployRequest describes one deploy invocation.
type DeployRequest struct {
	Options
	// SkipConfirm skips the "deploy?" question.
	SkipConfirm   bool
	SkipLocalTest bool
}

// Controller runs deployment operations.
type Controller struct {
	profiles CredentialSource
	factory  BackendFactory
	prompter Prompter
	out      io.Writer
	logger   *slog.Logger

	// interruptible derives the context log streaming runs under. Only
	// streaming reacts to SIGINT; build and upload keep the default
	// process handling.
	interruptible func(context.Context) (context.Context, context.CancelFunc)
}

// Option configures a Controller.
type Option func(*Controller)

// WithOutput sets where progress messages are written.
func WithOutput(w io.Writer) Option { return func(c *Controller) { c.out = w } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithPrompter installs the interactive prompter.
func WithPrompter(p Prompter) Option { return func(c *Controller) { c.prompter = p } }

// WithInterruptContext replaces the signal-bound context used while
// streaming logs.
func WithInterruptContext(fn func(context.Context) (context.Context, context.CancelFunc)) Option {
	return func(c *Controller) { c.interruptible = fn }
}

// NewController creates a Controller.
func NewController(profiles CredentialSource, factory BackendFactory, opts ...Option) *Controller {
	c := &Controller{
		profiles:      profiles,
		factory:       factory,
		out:           os.Stdout,
		logger:        logger.Discard(),
		interruptible: notifyInterrupt,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// session is the state shared by the steps of one operation.
type session struct {
	dir     string
	project core.ProjectConfig
	creds   core.Credentials
	backend *Backend
}

// open resolves the directory and credentials and builds the backend.
// With scaffold set, missing project credentials are filled in from the
// profile and persisted.
func (c *Controller) open(opts Options, scaffold bool) (*session, error) {
	dir, err := resolveDir(opts.Dir)
	if err != nil {
		return nil, err
	}

	profile, err := c.profiles.Resolve(opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	var project core.ProjectConfig
	if scaffold {
		var changed bool
		project, changed, err = core.EnsureProjectConfig(dir, profile.Credentials)
		if err != nil {
			return nil, fmt.Errorf("preparing project configuration: %w", err)
		}
		if changed {
			fmt.Fprintf(c.out, "Saved credentials from profile %q to %s\n", profile.Name, filepath.Join(dir, core.ProjectEnvFile))
		}
	} else {
		project, _, err = core.ReadProjectConfig(dir)
		if err != nil {
			return nil, err
		}
	}

	creds := effectiveCredentials(project.Credentials(), profile.Credentials, opts.ForceProfile)
	if !creds.Complete() {
		return nil, fmt.Errorf("%w: run `xpander profile set` or set %s and %s", ErrNoCredentials, core.EnvAPIKey, core.EnvOrganizationID)
	}
	c.logger.Debug("effective credentials", "org", creds.OrganizationID, "forced_profile", opts.ForceProfile)

	backend, err := c.factory(creds)
	if err != nil {
		return nil, err
	}
	return &session{dir: dir, project: project, creds: creds, backend: backend}, nil
}

// effectiveCredentials prefers a complete project credential pair unless the
// profile was explicitly requested.
func effectiveCredentials(project, profile core.Credentials, forceProfile bool) core.Credentials {
	if forceProfile && profile.Complete() {
		return profile
	}
	if project.Complete() {
		return project
	}
	return profile
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return cwd, nil
	}
	abs, err := filepath.Abs(core.ExpandPath(dir))
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", dir, err)
	}
	return abs, nil
}

// confirm asks the user unless prompting is disabled, in which case the
// answer is yes.
func (c *Controller) confirm(ctx context.Context, nonInteractive bool, message string) (bool, error) {
	if nonInteractive || c.prompter == nil {
		return true, nil
	}
	return c.prompter.Confirm(ctx, message)
}

// resolveExisting resolves the reference for operations on an agent that
// must already exist: explicit reference, then project config, then picker.
func (c *Controller) resolveExisting(ctx context.Context, s *session, opts Options) (string, error) {
	return s.backend.Resolver.Resolve(ctx, opts.Agent, resolve.Options{Dir: s.dir})
}

// Restart restarts the agent's running deployment.
func (c *Controller) Restart(ctx context.Context, opts Options) error {
	s, err := c.open(opts, false)
	if err != nil {
		return err
	}
	id, err := c.resolveExisting(ctx, s, opts)
	if err != nil {
		return err
	}

	if err := s.backend.Agents.RestartDeployment(ctx, id); err != nil {
		return fmt.Errorf("restarting agent %s: %w", id, err)
	}
	fmt.Fprintf(c.out, "Restarted agent %s\n", id)
	return nil
}

// Stop stops the agent's deployment. Stopping an agent with nothing
// running succeeds.
func (c *Controller) Stop(ctx context.Context, opts Options) error {
	s, err := c.open(opts, false)
	if err != nil {
		return err
	}
	id, err := c.resolveExisting(ctx, s, opts)
	if err != nil {
		return err
	}
	return c.stop(ctx, s, id)
}

func (c *Controller) stop(ctx context.Context, s *session, id string) error {
	res, err := s.backend.Agents.StopDeployment(ctx, id)
	if err != nil {
		return fmt.Errorf("stopping agent %s: %w", id, err)
	}
	if res.Stopped {
		fmt.Fprintf(c.out, "Stopped running deployment of agent %s\n", id)
	} else {
		fmt.Fprintf(c.out, "No running deployment of agent %s\n", id)
	}
	return nil
}

// Logs follows the agent's logs until ctx is cancelled.
func (c *Controller) Logs(ctx context.Context, opts Options) error {
	s, err := c.open(opts, false)
	if err != nil {
		return err
	}
	id, err := c.resolveExisting(ctx, s, opts)
	if err != nil {
		return err
	}
	return c.follow(ctx, s, id)
}

func notifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// follow streams logs until the user interrupts. The interrupt ends the
// stream, not the process.
func (c *Controller) follow(ctx context.Context, s *session, id string) error {
	ctx, stop := c.interruptible(ctx)
	defer stop()
	return s.backend.Logs.Stream(ctx, id)
}

// ResolveAgent returns the agent ID a reference designates, without
// touching the project's files.
func (c *Controller) ResolveAgent(ctx context.Context, opts Options) (string, error) {
	s, err := c.open(opts, false)
	if err != nil {
		return "", err
	}
	return s.backend.Resolver.Resolve(ctx, opts.Agent, resolve.Options{Dir: s.dir, Silent: true})
}
