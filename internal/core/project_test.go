package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Project configuration (.env)
// ---------------------------------------------------------------------------

func TestProjectConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := ProjectConfig{APIKey: "k", OrganizationID: "o", AgentID: "a"}

	if err := WriteProjectConfig(dir, want); err != nil {
		t.Fatalf("WriteProjectConfig() error: %v", err)
	}

	got, exists, err := ReadProjectConfig(dir)
	if err != nil {
		t.Fatalf("ReadProjectConfig() error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if got != want {
		t.Errorf("ReadProjectConfig() = %+v, want %+v", got, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, ProjectEnvFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(string(data), `"'`) {
		t.Errorf("expected unquoted values, got:\n%s", data)
	}
	for _, line := range []string{"XPANDER_API_KEY=k", "XPANDER_ORGANIZATION_ID=o", "XPANDER_AGENT_ID=a"} {
		if !strings.Contains(string(data), line+"\n") {
			t.Errorf("missing line %q in:\n%s", line, data)
		}
	}
}

func TestProjectConfig_ReadMissing(t *testing.T) {
	cfg, exists, err := ReadProjectConfig(t.TempDir())
	if err != nil {
		t.Fatalf("ReadProjectConfig() error: %v", err)
	}
	if exists {
		t.Error("expected exists = false")
	}
	if cfg != (ProjectConfig{}) {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestProjectConfig_ReadsQuotedAndExported(t *testing.T) {
	dir := t.TempDir()
	content := "# xpander\nexport XPANDER_API_KEY=\"quoted\"\nXPANDER_AGENT_ID='single'\n"
	if err := os.WriteFile(filepath.Join(dir, ProjectEnvFile), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := ReadProjectConfig(dir)
	if err != nil {
		t.Fatalf("ReadProjectConfig() error: %v", err)
	}
	if cfg.APIKey != "quoted" {
		t.Errorf("APIKey = %q, want \"quoted\"", cfg.APIKey)
	}
	if cfg.AgentID != "single" {
		t.Errorf("AgentID = %q, want \"single\"", cfg.AgentID)
	}
}

func TestWriteProjectConfig_UpdatesInPlace(t *testing.T) {
	dir := t.TempDir()
	content := "OPENAI_API_KEY=sk-123\nXPANDER_AGENT_ID=old\n# keep me\n"
	if err := os.WriteFile(filepath.Join(dir, ProjectEnvFile), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := WriteProjectConfig(dir, ProjectConfig{AgentID: "new"}); err != nil {
		t.Fatalf("WriteProjectConfig() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ProjectEnvFile))
	if err != nil {
		t.Fatal(err)
	}
	want := "OPENAI_API_KEY=sk-123\nXPANDER_AGENT_ID=new\n# keep me\n"
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestEnsureProjectConfig_ScaffoldsFromProfile(t *testing.T) {
	dir := t.TempDir()

	cfg, changed, err := EnsureProjectConfig(dir, Credentials{APIKey: "pk", OrganizationID: "po"})
	if err != nil {
		t.Fatalf("EnsureProjectConfig() error: %v", err)
	}
	if !changed {
		t.Error("expected changed = true")
	}
	if cfg.APIKey != "pk" || cfg.OrganizationID != "po" {
		t.Errorf("cfg = %+v", cfg)
	}

	gi, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf("expected .gitignore: %v", err)
	}
	if strings.TrimSpace(string(gi)) != ProjectEnvFile {
		t.Errorf(".gitignore = %q", gi)
	}
}

func TestEnsureProjectConfig_KeepsExistingCredentials(t *testing.T) {
	dir := t.TempDir()
	if err := WriteProjectConfig(dir, ProjectConfig{APIKey: "dir-key", OrganizationID: "dir-org"}); err != nil {
		t.Fatal(err)
	}

	cfg, changed, err := EnsureProjectConfig(dir, Credentials{APIKey: "pk", OrganizationID: "po"})
	if err != nil {
		t.Fatalf("EnsureProjectConfig() error: %v", err)
	}
	if changed {
		t.Error("expected changed = false")
	}
	if cfg.APIKey != "dir-key" || cfg.OrganizationID != "dir-org" {
		t.Errorf("cfg = %+v, want directory credentials", cfg)
	}
}

func TestEnsureProjectConfig_KeepsCredentialsOutOfGit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("__pycache__/"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := EnsureProjectConfig(dir, Credentials{APIKey: "k", OrganizationID: "o"}); err != nil {
		t.Fatalf("EnsureProjectConfig() error: %v", err)
	}
	// A second scaffold pass must not repeat the entry.
	if err := keepCredentialsOutOfGit(dir); err != nil {
		t.Fatalf("keepCredentialsOutOfGit() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatal(err)
	}
	want := "__pycache__/\n# xpander credentials\n/.env\n"
	if string(data) != want {
		t.Errorf(".gitignore = %q, want %q", data, want)
	}
}

func TestEnsureProjectConfig_RespectsExistingIgnorePattern(t *testing.T) {
	for _, pattern := range []string{".env", "/.env", ".env*", "*.env"} {
		t.Run(pattern, func(t *testing.T) {
			dir := t.TempDir()
			original := "venv/\n" + pattern + "\n"
			if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(original), 0o644); err != nil {
				t.Fatal(err)
			}

			if _, _, err := EnsureProjectConfig(dir, Credentials{APIKey: "k", OrganizationID: "o"}); err != nil {
				t.Fatalf("EnsureProjectConfig() error: %v", err)
			}

			data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != original {
				t.Errorf(".gitignore = %q, want unchanged %q", data, original)
			}
		})
	}
}

func TestEnsureProjectConfig_ExistingFileLeavesGitignoreAlone(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("XPANDER_AGENT_ID=a1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := EnsureProjectConfig(dir, Credentials{APIKey: "k", OrganizationID: "o"}); err != nil {
		t.Fatalf("EnsureProjectConfig() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".gitignore")); !os.IsNotExist(err) {
		t.Errorf("expected no .gitignore for an existing project, stat err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Project checks
// ---------------------------------------------------------------------------

func TestIsEmpty(t *testing.T) {
	dir := t.TempDir()

	empty, err := IsEmpty(dir)
	if err != nil {
		t.Fatalf("IsEmpty() error: %v", err)
	}
	if !empty {
		t.Error("expected fresh temp dir to be empty")
	}

	// A single hidden file makes it non-empty.
	if err := os.WriteFile(filepath.Join(dir, ".keep"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	empty, err = IsEmpty(dir)
	if err != nil {
		t.Fatalf("IsEmpty() error: %v", err)
	}
	if empty {
		t.Error("expected dir with .keep to be non-empty")
	}
}

func TestIsEmpty_MissingDir(t *testing.T) {
	if _, err := IsEmpty(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestIsInitialized(t *testing.T) {
	tests := []struct {
		name         string
		files        []string
		wantInit     bool
		wantWarnings int
	}{
		{name: "empty", files: nil, wantInit: false},
		{name: "only dockerfile", files: []string{"Dockerfile"}, wantInit: false},
		{name: "env only", files: []string{".env"}, wantInit: true, wantWarnings: 2},
		{name: "env and dockerfile", files: []string{".env", "Dockerfile"}, wantInit: true, wantWarnings: 1},
		{name: "complete", files: []string{".env", "Dockerfile", "xpander_handler.py"}, wantInit: true, wantWarnings: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			initialized, warnings, err := IsInitialized(dir)
			if err != nil {
				t.Fatalf("IsInitialized() error: %v", err)
			}
			if initialized != tt.wantInit {
				t.Errorf("initialized = %v, want %v", initialized, tt.wantInit)
			}
			if len(warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", warnings, tt.wantWarnings)
			}
		})
	}
}

func TestDefaultAgentName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "weather-bot")
	if got := DefaultAgentName(dir); got != "weather-bot" {
		t.Errorf("DefaultAgentName() = %q, want \"weather-bot\"", got)
	}
}
