package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// ProjectEnvFile is the per-project configuration file.
	ProjectEnvFile = ".env"

	// Files a deployable project is expected to carry.
	buildRecipeFile = "Dockerfile"
	entrypointFile  = "xpander_handler.py"
)

// Keys recognized in the project configuration file.
const (
	EnvAPIKey         = "XPANDER_API_KEY"
	EnvOrganizationID = "XPANDER_ORGANIZATION_ID"
	EnvAgentID        = "XPANDER_AGENT_ID"
)

// IsEmpty reports whether dir contains no entries at all.
func IsEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", dir, err)
	}
	return len(entries) == 0, nil
}

// IsInitialized reports whether dir holds a project configuration file.
// Missing build recipe or entrypoint files are returned as warnings rather
// than failures; projects may lay themselves out differently.
func IsInitialized(dir string) (bool, []string, error) {
	if !dirExists(dir) {
		return false, nil, fmt.Errorf("%s is not a directory", dir)
	}
	if !fileExists(filepath.Join(dir, ProjectEnvFile)) {
		return false, nil, nil
	}

	var warnings []string
	if !fileExists(filepath.Join(dir, buildRecipeFile)) {
		warnings = append(warnings, fmt.Sprintf("no %s found in %s; the image build will likely fail", buildRecipeFile, dir))
	}
	if !fileExists(filepath.Join(dir, entrypointFile)) {
		warnings = append(warnings, fmt.Sprintf("no %s found in %s; make sure your image starts an agent worker", entrypointFile, dir))
	}
	return true, warnings, nil
}

// ReadProjectConfig reads the project configuration from dir/.env.
// The second return value is false when the file does not exist.
func ReadProjectConfig(dir string) (ProjectConfig, bool, error) {
	path := filepath.Join(dir, ProjectEnvFile)
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ProjectConfig{}, false, nil
		}
		return ProjectConfig{}, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return ProjectConfig{
		APIKey:         env[EnvAPIKey],
		OrganizationID: env[EnvOrganizationID],
		AgentID:        env[EnvAgentID],
	}, true, nil
}

// WriteProjectConfig persists the non-empty fields of cfg into dir/.env.
// Existing keys are updated in place; unrelated lines are preserved.
func WriteProjectConfig(dir string, cfg ProjectConfig) error {
	return writeEnvVars(dir, []envVar{
		{EnvAPIKey, cfg.APIKey},
		{EnvOrganizationID, cfg.OrganizationID},
		{EnvAgentID, cfg.AgentID},
	})
}

// EnsureProjectConfig makes sure dir/.env carries a credential pair, filling
// missing keys from creds. Returns the resulting configuration and whether
// the file was changed.
func EnsureProjectConfig(dir string, creds Credentials) (ProjectConfig, bool, error) {
	cfg, exists, err := ReadProjectConfig(dir)
	if err != nil {
		return cfg, false, err
	}

	var missing ProjectConfig
	if cfg.APIKey == "" && creds.APIKey != "" {
		missing.APIKey = creds.APIKey
		cfg.APIKey = creds.APIKey
	}
	if cfg.OrganizationID == "" && creds.OrganizationID != "" {
		missing.OrganizationID = creds.OrganizationID
		cfg.OrganizationID = creds.OrganizationID
	}
	if missing == (ProjectConfig{}) {
		return cfg, false, nil
	}

	if err := WriteProjectConfig(dir, missing); err != nil {
		return cfg, false, err
	}
	if !exists {
		if err := keepCredentialsOutOfGit(dir); err != nil {
			return cfg, true, err
		}
	}
	return cfg, true, nil
}

type envVar struct {
	name  string
	value string
}

// writeEnvVars writes or updates env vars in dir/.env.
// If the file doesn't exist, it creates it. Values are written unquoted.
func writeEnvVars(dir string, vars []envVar) error {
	path := filepath.Join(dir, ProjectEnvFile)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	for _, v := range vars {
		if v.value == "" {
			continue
		}
		newLine := v.name + "=" + v.value

		found := false
		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			trimmed = strings.TrimPrefix(trimmed, "export ")
			if idx := strings.IndexByte(trimmed, '='); idx >= 0 {
				if strings.TrimSpace(trimmed[:idx]) == v.name {
					lines[i] = newLine
					found = true
					break
				}
			}
		}
		if !found {
			lines = append(lines, newLine)
		}
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// keepCredentialsOutOfGit lists the project configuration file in the
// project's .gitignore so the API key written by a first deploy is never
// committed. Patterns already covering the file are honored.
func keepCredentialsOutOfGit(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for _, pattern := range strings.Fields(string(existing)) {
		if ignoresProjectConfig(pattern) {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	entry := "# xpander credentials\n/" + ProjectEnvFile + "\n"
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		entry = "\n" + entry
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ignoresProjectConfig reports whether a .gitignore pattern matches the
// project configuration file at the repository root.
func ignoresProjectConfig(pattern string) bool {
	switch strings.TrimPrefix(pattern, "/") {
	case ProjectEnvFile, ".env*", "*.env":
		return true
	}
	return false
}
