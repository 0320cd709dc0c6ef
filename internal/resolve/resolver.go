// Package resolve maps a user-supplied agent reference (an ID, a name, or
// nothing) to exactly one agent ID.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/xpander-ai/xpander-cli/internal/api"
	"github.com/xpander-ai/xpander-cli/internal/core"
	"github.com/xpander-ai/xpander-cli/internal/logger"
)

// ErrAgentNotFound is returned when no agent matches the reference.
var ErrAgentNotFound = errors.New("agent not found")

// ErrNoAgentSpecified is returned when no reference was given, the project
// has no persisted agent ID, and the user cannot be asked to pick one.
var ErrNoAgentSpecified = errors.New("no agent specified")

// AmbiguousError is returned when a name matches several agents and the
// chooser cannot ask the user to pick one.
type AmbiguousError struct {
	Name       string
	Candidates []api.Agent // newest first
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d agents are named %q; pass an agent ID instead:", len(e.Candidates), e.Name)
	for _, a := range e.Candidates {
		fmt.Fprintf(&sb, "\n  %s  (created %s)", a.ID, a.CreatedAt.Format("2006-01-02 15:04"))
	}
	return sb.String()
}

// Lister fetches the remote agent listing.
type Lister interface {
	ListAgents(ctx context.Context) ([]api.Agent, error)
}

// Chooser picks one agent out of several. Candidates arrive sorted newest
// first. name is the reference that matched them, or empty when choosing
// among all agents. Implementations that cannot prompt return an error.
type Chooser interface {
	ChooseAgent(ctx context.Context, name string, candidates []api.Agent) (api.Agent, error)
}

// NoPrompt is a Chooser for non-interactive runs: it never picks.
type NoPrompt struct{}

// ChooseAgent returns an *AmbiguousError describing the candidates.
func (NoPrompt) ChooseAgent(_ context.Context, name string, candidates []api.Agent) (api.Agent, error) {
	return api.Agent{}, &AmbiguousError{Name: name, Candidates: candidates}
}

// Options controls a single resolution.
type Options struct {
	// Silent suppresses the confirmation message for a unique name match.
	Silent bool
	// Dir is searched for a previously resolved agent ID when no reference
	// is given. Defaults to the working directory.
	Dir string
	// OfferNew adds a "new agent" entry to the pick offered for an empty
	// reference. Choosing it, or having no agents at all, resolves to "".
	OfferNew bool
}

// NewAgentChoice is the candidate standing for "create a new agent". It has
// no ID.
var NewAgentChoice = api.Agent{}

// Resolver resolves agent references against a cached listing.
type Resolver struct {
	lister  Lister
	scope   string
	cache   *Cache
	chooser Chooser
	out     io.Writer
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOutput sets where confirmation messages are written.
func WithOutput(w io.Writer) Option {
	return func(r *Resolver) { r.out = w }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver. scope keys the cache and should identify the
// credentials the lister uses.
func New(lister Lister, scope string, cache *Cache, chooser Chooser, opts ...Option) *Resolver {
	if chooser == nil {
		chooser = NoPrompt{}
	}
	r := &Resolver{
		lister:  lister,
		scope:   scope,
		cache:   cache,
		chooser: chooser,
		out:     os.Stdout,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the ID of the agent the reference designates.
func (r *Resolver) Resolve(ctx context.Context, input string, opts Options) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return r.resolveDefault(ctx, opts)
	}

	agents, cached, err := r.listing(ctx, false)
	if err != nil {
		return "", err
	}

	id, matches := match(agents, input)
	if id == "" && len(matches) == 0 && cached {
		// The cached listing may predate an agent created moments ago.
		r.logger.Debug("cache miss for agent reference, refreshing", "ref", input)
		if agents, _, err = r.listing(ctx, true); err != nil {
			return "", err
		}
		id, matches = match(agents, input)
	}

	if id != "" {
		return id, nil
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrAgentNotFound, input)
	case 1:
		if !opts.Silent {
			fmt.Fprintf(r.out, "Using agent %q (%s)\n", matches[0].Name, matches[0].ID)
		}
		return matches[0].ID, nil
	default:
		sortNewestFirst(matches)
		picked, err := r.chooser.ChooseAgent(ctx, input, matches)
		if err != nil {
			return "", err
		}
		return picked.ID, nil
	}
}

// resolveDefault handles an empty reference: the project's persisted agent
// ID wins, otherwise the user picks from all agents.
func (r *Resolver) resolveDefault(ctx context.Context, opts Options) (string, error) {
	dir := opts.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = cwd
	}

	cfg, _, err := core.ReadProjectConfig(dir)
	if err != nil {
		return "", err
	}
	if cfg.AgentID != "" {
		r.logger.Debug("using agent from project config", "dir", dir, "agent", cfg.AgentID)
		return cfg.AgentID, nil
	}

	if _, ok := r.chooser.(NoPrompt); ok {
		return "", fmt.Errorf("%w: pass an agent name or ID, or set %s in %s", ErrNoAgentSpecified, core.EnvAgentID, core.ProjectEnvFile)
	}

	agents, _, err := r.listing(ctx, false)
	if err != nil {
		return "", err
	}
	if len(agents) == 0 {
		if opts.OfferNew {
			return "", nil
		}
		return "", ErrAgentNotFound
	}

	all := append([]api.Agent(nil), agents...)
	sortNewestFirst(all)
	if opts.OfferNew {
		all = append(all, NewAgentChoice)
	}
	picked, err := r.chooser.ChooseAgent(ctx, "", all)
	if err != nil {
		return "", err
	}
	return picked.ID, nil
}

// listing returns the agents for the resolver's scope and whether they came
// from the cache. force bypasses the cache.
func (r *Resolver) listing(ctx context.Context, force bool) ([]api.Agent, bool, error) {
	if !force && r.cache != nil {
		if agents, ok := r.cache.Get(r.scope); ok {
			return agents, true, nil
		}
	}

	agents, err := r.lister.ListAgents(ctx)
	if err != nil {
		return nil, false, err
	}
	if r.cache != nil {
		r.cache.Set(r.scope, agents)
	}
	return agents, false, nil
}

// match looks the reference up as an ID first, then as a case-insensitive
// name. It returns the ID on an exact ID hit, otherwise the name matches.
func match(agents []api.Agent, ref string) (string, []api.Agent) {
	if looksLikeID(ref) {
		for _, a := range agents {
			if strings.EqualFold(a.ID, ref) {
				return a.ID, nil
			}
		}
	}

	var matches []api.Agent
	for _, a := range agents {
		if strings.EqualFold(a.Name, ref) {
			matches = append(matches, a)
		}
	}
	return "", matches
}

// looksLikeID reports whether ref is syntactically an agent ID (a UUID).
func looksLikeID(ref string) bool {
	return uuid.Validate(ref) == nil
}

func sortNewestFirst(agents []api.Agent) {
	sort.SliceStable(agents, func(i, j int) bool {
		return agents[i].CreatedAt.After(agents[j].CreatedAt)
	})
}
