// Package core provides the local state the xpander CLI works with:
// user settings, credential profiles and per-project configuration.
// It has zero UI dependencies and is independently testable.
package core

import "time"

// Settings represents the CLI configuration stored at ~/.xpander/config.yaml.
type Settings struct {
	Log      LogSettings      `yaml:"log"`
	API      APISettings      `yaml:"api"`
	Build    BuildSettings    `yaml:"build"`
	Resolver ResolverSettings `yaml:"resolver"`
}

// LogSettings controls the diagnostic logger.
type LogSettings struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stderr, stdout or a file path
}

// APISettings selects the remote environment. The URL fields override the
// environment's endpoints when set.
type APISettings struct {
	Staging              bool   `yaml:"staging"`
	BaseURL              string `yaml:"baseURL,omitempty"`
	DeploymentManagerURL string `yaml:"deploymentManagerURL,omitempty"`
}

// BuildSettings tunes the image build.
type BuildSettings struct {
	Platform       string        `yaml:"platform"`
	SmokeTestGrace time.Duration `yaml:"smokeTestGrace"`
}

// ResolverSettings tunes agent name resolution.
type ResolverSettings struct {
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Credentials is an API key scoped to one organization.
type Credentials struct {
	APIKey         string `json:"api_key"`
	OrganizationID string `json:"organization_id"`
}

// Complete reports whether both halves of the credential pair are set.
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.OrganizationID != ""
}

// Profile is a named credential pair.
type Profile struct {
	Name string
	Credentials
}

// ProjectConfig is the deployment state persisted in a project's .env file.
type ProjectConfig struct {
	APIKey         string
	OrganizationID string
	AgentID        string
}

// Credentials returns the credential pair carried by the project.
func (p ProjectConfig) Credentials() Credentials {
	return Credentials{APIKey: p.APIKey, OrganizationID: p.OrganizationID}
}
