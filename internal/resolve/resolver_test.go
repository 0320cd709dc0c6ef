package resolve

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpander-ai/xpander-cli/internal/api"
)

const (
	idOld = "0b7c3f0e-6a51-4bb4-9b7f-5d7a3f3c1a01"
	idNew = "1c8d4a1f-7b62-4cc5-8c80-6e8b4a4d2b02"
	idBar = "2d9e5b20-8c73-4dd6-9d91-7f9c5b5e3c03"
)

var day = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func fixture() []api.Agent {
	return []api.Agent{
		{ID: idOld, Name: "Foo", CreatedAt: day},
		{ID: idNew, Name: "foo", CreatedAt: day.Add(48 * time.Hour)},
		{ID: idBar, Name: "Bar", CreatedAt: day.Add(24 * time.Hour)},
	}
}

type stubLister struct {
	mu     sync.Mutex
	agents []api.Agent
	err    error
	calls  int
}

func (s *stubLister) ListAgents(context.Context) ([]api.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]api.Agent(nil), s.agents...), nil
}

func (s *stubLister) set(agents []api.Agent) {
	s.mu.Lock()
	s.agents = agents
	s.mu.Unlock()
}

// firstChooser always takes the first candidate and records what it saw.
type firstChooser struct {
	calls int
	seen  []api.Agent
}

func (f *firstChooser) ChooseAgent(_ context.Context, _ string, candidates []api.Agent) (api.Agent, error) {
	f.calls++
	f.seen = candidates
	return candidates[0], nil
}

func newResolver(t *testing.T, l Lister, ch Chooser, out *bytes.Buffer) *Resolver {
	t.Helper()
	cache, err := NewCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return New(l, "org-1", cache, ch, WithOutput(out))
}

func TestResolve_DuplicateNamesPickNewest(t *testing.T) {
	lister := &stubLister{agents: fixture()}
	chooser := &firstChooser{}
	r := newResolver(t, lister, chooser, &bytes.Buffer{})

	id, err := r.Resolve(t.Context(), "FOO", Options{})
	require.NoError(t, err)
	assert.Equal(t, idNew, id)

	require.Equal(t, 1, chooser.calls)
	require.Len(t, chooser.seen, 2)
	assert.Equal(t, idNew, chooser.seen[0].ID)
	assert.Equal(t, idOld, chooser.seen[1].ID)
}

func TestResolve_IDPassthrough(t *testing.T) {
	agents := fixture()
	// An agent whose name is another agent's ID must not shadow the ID match.
	agents = append(agents, api.Agent{ID: "3eaf6c31-9d84-4ee7-aea2-80ad6c6f4d04", Name: idBar, CreatedAt: day})
	lister := &stubLister{agents: agents}
	chooser := &firstChooser{}
	r := newResolver(t, lister, chooser, &bytes.Buffer{})

	id, err := r.Resolve(t.Context(), idBar, Options{})
	require.NoError(t, err)
	assert.Equal(t, idBar, id)
	assert.Zero(t, chooser.calls)
}

func TestResolve_SingleNameMatch(t *testing.T) {
	var out bytes.Buffer
	r := newResolver(t, &stubLister{agents: fixture()}, nil, &out)

	id, err := r.Resolve(t.Context(), "bar", Options{})
	require.NoError(t, err)
	assert.Equal(t, idBar, id)
	assert.Contains(t, out.String(), `Using agent "Bar"`)
}

func TestResolve_SingleNameMatchSilent(t *testing.T) {
	var out bytes.Buffer
	r := newResolver(t, &stubLister{agents: fixture()}, nil, &out)

	_, err := r.Resolve(t.Context(), "bar", Options{Silent: true})
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestResolve_RefreshesOnceOnCacheMiss(t *testing.T) {
	lister := &stubLister{agents: fixture()}
	r := newResolver(t, lister, nil, &bytes.Buffer{})

	_, err := r.Resolve(t.Context(), "Bar", Options{Silent: true})
	require.NoError(t, err)
	require.Equal(t, 1, lister.calls)

	// An agent created after the listing was cached.
	lister.set(append(fixture(), api.Agent{ID: "4fb07d42-ae95-4ff8-bfb3-91be7d7e5e05", Name: "Fresh", CreatedAt: day}))

	id, err := r.Resolve(t.Context(), "fresh", Options{Silent: true})
	require.NoError(t, err)
	assert.Equal(t, "4fb07d42-ae95-4ff8-bfb3-91be7d7e5e05", id)
	assert.Equal(t, 2, lister.calls)
}

func TestResolve_NotFoundAfterSingleRefresh(t *testing.T) {
	lister := &stubLister{agents: fixture()}
	r := newResolver(t, lister, nil, &bytes.Buffer{})

	_, err := r.Resolve(t.Context(), "Bar", Options{Silent: true})
	require.NoError(t, err)

	_, err = r.Resolve(t.Context(), "ghost", Options{})
	require.ErrorIs(t, err, ErrAgentNotFound)
	assert.Equal(t, 2, lister.calls, "a miss refreshes exactly once")
}

func TestResolve_NotFoundFreshListingNoRefresh(t *testing.T) {
	lister := &stubLister{agents: fixture()}
	r := newResolver(t, lister, nil, &bytes.Buffer{})

	_, err := r.Resolve(t.Context(), "ghost", Options{})
	require.ErrorIs(t, err, ErrAgentNotFound)
	assert.Equal(t, 1, lister.calls)
}

func TestResolve_AmbiguousWithoutPrompt(t *testing.T) {
	r := newResolver(t, &stubLister{agents: fixture()}, NoPrompt{}, &bytes.Buffer{})

	_, err := r.Resolve(t.Context(), "foo", Options{})
	var amb *AmbiguousError
	require.ErrorAs(t, err, &amb)
	require.Len(t, amb.Candidates, 2)
	assert.Equal(t, idNew, amb.Candidates[0].ID)
	assert.Contains(t, err.Error(), idOld)
}

func TestResolve_TransportErrorNotRetried(t *testing.T) {
	boom := errors.New("connection refused")
	lister := &stubLister{err: boom}
	r := newResolver(t, lister, nil, &bytes.Buffer{})

	_, err := r.Resolve(t.Context(), "foo", Options{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, lister.calls)
}

func TestResolve_EmptyInputUsesProjectAgent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("XPANDER_AGENT_ID=persisted-1\n"), 0o600))
	lister := &stubLister{agents: fixture()}
	r := newResolver(t, lister, nil, &bytes.Buffer{})

	id, err := r.Resolve(t.Context(), "  ", Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "persisted-1", id)
	assert.Zero(t, lister.calls)
}

func TestResolve_EmptyInputPicksFromAll(t *testing.T) {
	chooser := &firstChooser{}
	r := newResolver(t, &stubLister{agents: fixture()}, chooser, &bytes.Buffer{})

	id, err := r.Resolve(t.Context(), "", Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, idNew, id)
	require.Len(t, chooser.seen, 3)
	assert.Equal(t, idBar, chooser.seen[1].ID)
}

// lastChooser takes the last candidate.
type lastChooser struct{ seen []api.Agent }

func (l *lastChooser) ChooseAgent(_ context.Context, _ string, candidates []api.Agent) (api.Agent, error) {
	l.seen = candidates
	return candidates[len(candidates)-1], nil
}

func TestResolve_EmptyInputOffersNewAgent(t *testing.T) {
	chooser := &lastChooser{}
	r := newResolver(t, &stubLister{agents: fixture()}, chooser, &bytes.Buffer{})

	id, err := r.Resolve(t.Context(), "", Options{Dir: t.TempDir(), OfferNew: true})
	require.NoError(t, err)
	assert.Empty(t, id, "choosing the new-agent entry resolves to no ID")
	require.Len(t, chooser.seen, 4)
	assert.Equal(t, idNew, chooser.seen[0].ID, "existing agents still lead, newest first")
	assert.Equal(t, NewAgentChoice, chooser.seen[3])
}

func TestResolve_EmptyInputNoAgentsOfferNew(t *testing.T) {
	chooser := &firstChooser{}
	r := newResolver(t, &stubLister{}, chooser, &bytes.Buffer{})

	id, err := r.Resolve(t.Context(), "", Options{Dir: t.TempDir(), OfferNew: true})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, chooser.calls)
}

func TestResolve_EmptyInputWithoutPrompt(t *testing.T) {
	lister := &stubLister{agents: fixture()}
	r := newResolver(t, lister, NoPrompt{}, &bytes.Buffer{})

	_, err := r.Resolve(t.Context(), "", Options{Dir: t.TempDir()})
	require.ErrorIs(t, err, ErrNoAgentSpecified)
	assert.Zero(t, lister.calls)
}

func TestCache_Invalidate(t *testing.T) {
	cache, err := NewCache(time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("org-1", fixture())
	got, ok := cache.Get("org-1")
	require.True(t, ok)
	assert.Len(t, got, 3)

	cache.Invalidate("org-1")
	_, ok = cache.Get("org-1")
	assert.False(t, ok)
}
