package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tailscale/hujson"
)

const (
	profilesFileName = "credentials.json"

	// DefaultProfileName is used when no profile has been activated yet.
	DefaultProfileName = "default"

	// Environment variables that override the active profile's credentials.
	APIKeyEnv         = "XPANDER_API_KEY"
	OrganizationIDEnv = "XPANDER_ORGANIZATION_ID"
)

// ErrProfileNotFound is returned when a named profile does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// profilesFile is the on-disk layout of credentials.json.
type profilesFile struct {
	Active   string                 `json:"active"`
	Profiles map[string]Credentials `json:"profiles"`
}

// ProfileStore reads and writes named credential profiles.
// The file is parsed as JSONC so hand edits with comments or trailing
// commas keep working.
type ProfileStore struct {
	path string
	mu   sync.Mutex
}

// NewProfileStore creates a ProfileStore backed by the given file.
func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{path: path}
}

func (s *ProfileStore) load() (*profilesFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &profilesFile{Profiles: map[string]Credentials{}}, nil
		}
		return nil, fmt.Errorf("reading profiles: %w", err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing profiles %s: %w", s.path, err)
	}

	var pf profilesFile
	if err := json.Unmarshal(std, &pf); err != nil {
		return nil, fmt.Errorf("decoding profiles %s: %w", s.path, err)
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]Credentials{}
	}
	return &pf, nil
}

func (s *ProfileStore) save(pf *profilesFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profiles: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing profiles: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving profiles: %w", err)
	}
	return nil
}

// List returns all profiles sorted by name, and the name of the active one.
func (s *ProfileStore) List() ([]Profile, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.load()
	if err != nil {
		return nil, "", err
	}
	profiles := make([]Profile, 0, len(pf.Profiles))
	for name, creds := range pf.Profiles {
		profiles = append(profiles, Profile{Name: name, Credentials: creds})
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, activeName(pf), nil
}

// Get returns the named profile. An empty name selects the active profile.
func (s *ProfileStore) Get(name string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.load()
	if err != nil {
		return Profile{}, err
	}
	if name == "" {
		name = activeName(pf)
	}
	creds, ok := pf.Profiles[name]
	if !ok {
		return Profile{Name: name}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return Profile{Name: name, Credentials: creds}, nil
}

// Set creates or replaces a profile. The first profile written becomes active.
func (s *ProfileStore) Set(p Profile) error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.load()
	if err != nil {
		return err
	}
	pf.Profiles[p.Name] = p.Credentials
	if pf.Active == "" {
		pf.Active = p.Name
	}
	return s.save(pf)
}

// Use marks the named profile as active.
func (s *ProfileStore) Use(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := pf.Profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	pf.Active = name
	return s.save(pf)
}

// Resolve returns the credentials for the named (or active) profile with
// XPANDER_API_KEY / XPANDER_ORGANIZATION_ID applied on top. A missing profile
// is not an error when the environment supplies credentials.
func (s *ProfileStore) Resolve(name string) (Profile, error) {
	p, err := s.Get(name)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return Profile{}, err
	}
	if v := os.Getenv(APIKeyEnv); v != "" {
		p.APIKey = v
	}
	if v := os.Getenv(OrganizationIDEnv); v != "" {
		p.OrganizationID = v
	}
	if err != nil && name != "" && !p.Complete() {
		return p, err
	}
	return p, nil
}

func activeName(pf *profilesFile) string {
	if pf.Active != "" {
		return pf.Active
	}
	return DefaultProfileName
}
